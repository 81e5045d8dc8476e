// Package console implements the gRPC control API of the solar console.
//
// The service is described by hand with protobuf well-known types
// (Empty, BoolValue, Struct), so no generated code is needed on either side.
// Documents travel as Struct values built from the JSON form of the
// domain types. The caller's identity rides in request metadata.
package console
