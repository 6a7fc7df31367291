// Package app composes the registrar's services into a running application.
//
// The layout follows a composition-over-logic split:
//
//	internal/app/
//	├── application.go      # Wiring and lifecycle
//	├── domain/             # Value types shared across services
//	├── services/           # Business logic (pricing, license, registrar, oracle)
//	├── storage/            # Store interfaces, memory and postgres backends
//	├── httpapi/            # REST handlers and middleware
//	├── system/             # Background service lifecycle management
//	└── metrics/            # Prometheus collectors
//
// Business rules live under internal/app/services/; this package only
// builds them from configuration and manages start and stop ordering.
package app
