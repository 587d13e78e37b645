// Package config defines the immutable run parameters of a pipeline
// invocation. A Config is resolved exactly once at startup, from an optional
// HCL file merged with programmatic overrides, validated, and then passed by
// value of reference to every component. No component mutates it and no
// component reads ambient state.
package config
