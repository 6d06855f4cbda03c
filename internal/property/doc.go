// Package property provides the property processors a generation run
// computes, and the registry that holds them.
//
// A FieldProcessor reduces one field of one series over each interval
// window to a single value: the first, last, mean, sum, min, max, count or
// a quantile of the field's values. Windows without values carry the
// previous result forward.
package property
