// Package mqtt bridges the keyboard pack to an MQTT broker.
//
// Topics, under the broker URL's prefix and the device ID:
//
//	<id>/online        retained "true"/"false", "false" is also the will
//	<id>/status        retained JSON status
//	<id>/event/<kind>  JSON events
//	<id>/cmd           JSON CommandRequest, executed on the link
//	<id>/cmd/result    JSON CommandResult
package mqtt
