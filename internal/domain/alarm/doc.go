// Package alarm contains the domain types of the audible alarm.
//
// It defines State (which alarm is sounding), Condition (the pair of flags a
// poll produces), Variant (the tone pitch) and Status, the observable alarm
// record with the Actor who last silenced it. Clone helpers avoid leaking
// internal references out of the console loop.
package alarm
