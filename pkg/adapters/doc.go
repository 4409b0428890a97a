// Package adapters defines the provider adapter layer: the capability
// interfaces a provider translator implements (request translation, response
// translation, streaming accumulation, model listing), the builtin provider
// endpoint table, and the Adapter type that binds a translator to a transport
// and a load lifecycle.
//
// Translators are stateless converters between the canonical chat schema and
// one provider wire dialect. Everything stateful (the HTTP client, the
// lifecycle machine, the active stream) lives on the Adapter.
package adapters
