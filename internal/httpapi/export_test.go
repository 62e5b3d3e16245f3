package httpapi

// Classify exposes the error mapping for table tests.
var Classify = classify
