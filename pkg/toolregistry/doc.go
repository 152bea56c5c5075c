// Package toolregistry is the agent's tool catalogue: a name keyed set of
// handlers built once at startup and locked, executed through a single
// entry point that announces tool:start/tool:end events around every call.
package toolregistry
