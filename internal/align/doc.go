// Package align walks a driving series interval by interval and hands every
// processor the rows of its auxiliary series that fall inside each interval.
//
// An interval is the half-open range (previous driving date, current driving
// date]. Auxiliary series are read lazily, one chunk at a time, and only
// until the buffered rows are known to cover the interval end. Rows that can
// no longer match a later interval are released immediately, so memory stays
// bounded by the chunks overlapping the current interval.
//
// A run is composed of:
//
//	Schedule     intersect the bounds of every involved series
//	Multiplexer  produce one complete Window per interval
//	Dispatcher   feed each Window to every Processor
//	Sink         collect (date, value) points and persist them
//
// Generator wires these together.
package align
