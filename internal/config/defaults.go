package config

// DefaultURL is the gateway endpoint assumed when none is configured.
const DefaultURL = "ws://127.0.0.1:9443/ws"

// DefaultSessionKey is the chat session used when none is configured.
const DefaultSessionKey = "main"
