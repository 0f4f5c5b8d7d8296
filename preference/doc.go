// Package preference keeps the light/dark appearance choice consistent
// between device storage, the operating system and the user's server-side
// profile.
//
// Device storage is authoritative. Once the user has made an explicit choice
// on this device, the server copy is only a mirror and OS appearance changes
// are ignored until the choice is cleared. Without a local choice, the OS
// signal decides and a server-side preference may be adopted.
package preference
