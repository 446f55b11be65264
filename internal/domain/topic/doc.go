/*
Package topic exposes named push streams so they can be driven from
outside the process.

A Hub maps slash-separated names such as "sensors/kitchen/temp" to
stream publishers of Message. Publishing to an unknown name creates the
topic. Subscribe takes a doublestar glob ("sensors/**") and keeps the
watch attached to matching topics created later.

Derived topics apply a JavaScript expression over x to every value of a
source topic, evaluated with goja:

	hub.Derive("sensors/kitchen/temp_f", "sensors/kitchen/temp",
		topic.Derivation{Expression: "x * 9 / 5 + 32", Cache: true})

An expression yielding undefined filters the value. Evaluation errors
drop the value instead of propagating, since the hub sits on a service
boundary.

Every topic keeps its last message and gonum summary statistics over a
window of recent numeric values.
*/
package topic
