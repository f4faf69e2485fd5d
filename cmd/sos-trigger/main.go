// Command sos-trigger resolves the device position and raises an SOS alert.
package main

import "github.com/oshokin/sos-beacon/cmd/sos-trigger/cmd"

func main() {
	cmd.Execute()
}
