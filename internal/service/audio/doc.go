// Package audio produces the alarm tones.
//
// A Device plays a single Tone. The Signaler owns one device, emits bursts
// asynchronously and repeats them through a Scheduler so repetition stays
// on the console loop. If the device cannot be opened the Signaler becomes
// unavailable and every call turns into a no-op.
package audio
