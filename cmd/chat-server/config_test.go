package main

import (
	"testing"
	"time"
)

func validConfig() *appConfig {
	return &appConfig{
		listenAddr:   ":4000",
		numRooms:     5,
		roomCapacity: 25,
		maxClients:   0,
		clientReadTO: time.Minute,
		logFormat:    "text",
		logLevel:     "info",
		hubBuffer:    64,
		hubPolicy:    "drop",
	}
}

func TestConfigValidate_OK(t *testing.T) {
	if err := validConfig().validate(); err != nil {
		t.Fatalf("expected ok got %v", err)
	}
}

func TestConfigValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*appConfig)
	}{
		{"badFormat", func(c *appConfig) { c.logFormat = "xx" }},
		{"badLevel", func(c *appConfig) { c.logLevel = "nope" }},
		{"badPolicy", func(c *appConfig) { c.hubPolicy = "x" }},
		{"badHubBuf", func(c *appConfig) { c.hubBuffer = 0 }},
		{"zeroRooms", func(c *appConfig) { c.numRooms = 0 }},
		{"tooManyRooms", func(c *appConfig) { c.numRooms = 256 }},
		{"badRoomCap", func(c *appConfig) { c.roomCapacity = 0 }},
		{"badClientReadTO", func(c *appConfig) { c.clientReadTO = 0 }},
		{"badMaxClients", func(c *appConfig) { c.maxClients = -1 }},
	}
	for _, tc := range tests {
		base := validConfig()
		tc.mod(base)
		if err := base.validate(); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}
