// Package buildinfo exposes the version stamped into the binaries.
//
//	go build -ldflags "-X github.com/yndnr/waypoint-go/internal/infra/buildinfo.Version=v1.0.0"
package buildinfo
