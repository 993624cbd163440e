// Package connection is waypoint-cli's client for the waypoint-server admin API.
package connection
