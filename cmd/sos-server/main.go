// Command sos-server serves the SOS alert API.
package main

import "github.com/oshokin/sos-beacon/cmd/sos-server/cmd"

func main() {
	cmd.Execute()
}
