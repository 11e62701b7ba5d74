//go:build tools

// Regenerate the OpenAPI docs with:
//
//	go run github.com/swaggo/swag/cmd/swag init -g cmd/server/main.go -o docs
package tools

import (
	_ "github.com/swaggo/swag/cmd/swag"
)
