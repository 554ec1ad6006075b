// Package tlmt emits anonymous usage events for the operational endpoints.
package tlmt

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v4/host"
)

var (
	once       sync.Once
	identifier machineIdentifier
)

type Event struct {
	AnonymousID string
	Name        string
	Properties  map[string]any
}

func NewEvent(name string, props map[string]any) Event {
	ident := generateMachineID()

	ev := Event{
		AnonymousID: ident.id,
		Name:        name,
		Properties:  make(map[string]any, len(ident.meta)+len(props)),
	}

	for k, v := range ident.meta {
		ev.Properties[k] = v
	}

	for k, v := range props {
		ev.Properties[k] = v
	}

	return ev
}

type Telemetry interface {
	Send(ctx context.Context, event Event) error
	Close() error
}

type machineIdentifier struct {
	id   string
	meta map[string]any
}

func generateMachineID() machineIdentifier {
	once.Do(func() {
		hash := sha256.New()
		hash.Write([]byte(machineSeed()))
		hash.Write([]byte(runtime.GOARCH))
		hash.Write([]byte(runtime.GOOS))
		hash.Write([]byte(runtime.Version()))

		id := fmt.Sprintf("%x", hash.Sum(nil))

		meta := make(map[string]any)

		info, err := host.Info()
		if err == nil {
			meta["os"] = info.OS
			meta["platform"] = info.Platform
			meta["platform_family"] = info.PlatformFamily
			meta["platform_version"] = info.PlatformVersion
		}

		identifier.id = id
		identifier.meta = meta
	})

	return identifier
}

func machineSeed() string {
	info, err := host.Info()
	if err == nil && info.HostID != "" {
		return info.HostID
	}

	hostname, err := os.Hostname()
	if err == nil && hostname != "" {
		return hostname
	}

	return uuid.New().String()
}
