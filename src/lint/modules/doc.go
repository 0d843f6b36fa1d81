// Package modules contains the built-in lint modules. Import it for side
// effects to register them with the lint engine.
package modules
