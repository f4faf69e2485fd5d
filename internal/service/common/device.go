//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"fmt"
	"os"
	"os/user"

	"google.golang.org/grpc/metadata"
)

const (
	// MetadataDeviceHost carries the trigger's hostname in gRPC metadata.
	MetadataDeviceHost = "sos-device-host"
	// MetadataDeviceUser carries the trigger's OS user in gRPC metadata.
	MetadataDeviceUser = "sos-device-user"
)

// Device identifies the machine an alert was raised from.
type Device struct {
	// Hostname of the machine.
	Hostname string
	// Username of the OS account running the trigger.
	Username string
}

// DetectDevice gathers host and user information for the server logs.
func DetectDevice() (Device, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return Device{}, fmt.Errorf("hostname: %w", err)
	}

	currentUser, err := user.Current()
	if err != nil {
		return Device{}, fmt.Errorf("current user: %w", err)
	}

	return Device{
		Hostname: hostname,
		Username: currentUser.Username,
	}, nil
}

// AppendToOutgoing adds the device to the outgoing gRPC metadata.
func (d Device) AppendToOutgoing(ctx context.Context) context.Context {
	if d.Hostname == "" && d.Username == "" {
		return ctx
	}

	return metadata.AppendToOutgoingContext(ctx,
		MetadataDeviceHost, d.Hostname,
		MetadataDeviceUser, d.Username,
	)
}

// DeviceFromIncoming reads the device from incoming gRPC metadata.
func DeviceFromIncoming(ctx context.Context) (Device, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return Device{}, false
	}

	device := Device{
		Hostname: first(md.Get(MetadataDeviceHost)),
		Username: first(md.Get(MetadataDeviceUser)),
	}

	return device, device.Hostname != "" || device.Username != ""
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}

	return values[0]
}
