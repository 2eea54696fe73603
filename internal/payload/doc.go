// Package payload serializes extracted records and renders them as QR codes.
//
// The default join format produces "numero_serie: A1; modelo: X" and leaves
// out empty fields. A record in which every field is empty has no payload;
// Encoder.Encode then returns a nil result, which callers report as an
// explicit absence rather than an error.
package payload
