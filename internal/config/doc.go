// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for aila.
//
// Configuration file locations (in order of precedence):
//   - ~/.aila/config.toml
//   - ~/.aila/config.json
//   - Built-in defaults
//
// AILA_HOME moves the whole ~/.aila directory. A .env file in the working
// directory is read before environment overrides are applied.
//
// # Environment Overrides
//
//   - AILA_BASE_URL: service root
//   - AILA_LOG_LEVEL, AILA_LOG_FORMAT: logging
//   - AILA_HISTORY_WINDOW: messages sent as context with each turn
//
// # Usage
//
//	cfg := config.Global()
//	client := api.NewClient(&api.Config{BaseURL: cfg.Server.BaseURL})
//
//	// Live reload
//	go config.Watch(ctx, path, func(cfg *config.Config, err error) { ... })
package config
