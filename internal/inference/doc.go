// Package inference runs the classifier models behind long-lived workers.
//
// Each model gets one worker that initializes its backend, loads the model,
// runs a warm-up prediction and then serves feature bundles for any number
// of songs. The Pool owns those workers, tracks their lifecycle per model
// name, and turns every request into exactly one Outcome: a score in [0,1]
// or a 0.5 fallback flagged as an error.
package inference
