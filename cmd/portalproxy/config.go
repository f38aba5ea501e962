package main

import (
	"portalproxy-backend/internal/diagnostics"
	"portalproxy-backend/internal/scrapers/portal"
	"portalproxy-backend/internal/service"
	configlibsql "portalproxy-backend/lib/configutil/libsql"
)

type DiagnosticsConfig struct {
	Database configlibsql.Struct     `json:"database"`
	Smtp     diagnostics.SmtpConfig `json:"smtp"`
}

type Config struct {
	Port        int                `json:"port"`
	Portal      portal.Config      `json:"portal"`
	Auth        service.AuthConfig `json:"auth"`
	Diagnostics DiagnosticsConfig  `json:"diagnostics"`
	// CorsOrigins defaults to allowing every origin.
	CorsOrigins []string `json:"cors_origins"`
	// Timezone is an IANA name, it defaults to UTC.
	Timezone string `json:"timezone"`
}
