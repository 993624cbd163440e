// Package handler implements the waypoint-server admin API.
//
// Every JSON response uses the Response envelope. Domain errors are mapped
// to HTTP status codes by the numeric part of their WP- code.
package handler
