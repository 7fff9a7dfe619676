// Package ports resolves and matches module ports across a class hierarchy.
//
// A [Hierarchy] stores module classes as vertices of a graph with edges from
// child to parent. Each class declares its own input and output ports; a
// subclass inherits every port of its ancestors and may redeclare a name to
// overload it.
//
// A [Resolver] picks the effective spec of an overloaded name. Output ports
// resolve to the most specific declaration and input ports to the most
// general one, comparing the first type of each spec. Two ports connect when
// they sit on opposite endpoints and the source spec matches the destination
// spec position by position, with [Variant] matching anything.
package ports
