// Package model holds the provider-neutral types flows exchange with LLM
// backends: a single Generate interface covering streaming and non-streaming
// calls, normalized tool-call shapes, and a canned MockModel for tests.
//
// The bedrock and gemini subpackages implement Model over their vendor
// transports; agents and flows only ever see this package's types.
package model
