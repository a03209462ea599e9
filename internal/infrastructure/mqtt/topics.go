package mqtt

import "fmt"

// Topic prefixes for VehiCtrl MQTT topics.
const (
	// TopicPrefix is the root of every VehiCtrl topic.
	TopicPrefix = "vehictl"

	// TopicPrefixState is the base for retained state topics.
	TopicPrefixState = TopicPrefix + "/state"

	// TopicPrefixSystem is the base for service status topics.
	TopicPrefixSystem = TopicPrefix + "/system"
)

// Topics provides builders for VehiCtrl MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.RelayState("starter") // "vehictl/state/relay/starter"
type Topics struct{}

// RelayState returns the retained state topic for one relay channel.
//
// Example: vehictl/state/relay/ignition
func (Topics) RelayState(channel string) string {
	return fmt.Sprintf("%s/relay/%s", TopicPrefixState, channel)
}

// RegistrationState returns the retained registration state topic.
//
// Example: vehictl/state/registration
func (Topics) RegistrationState() string {
	return TopicPrefixState + "/registration"
}

// ServiceStatus returns the online/offline status topic of a service.
//
// Example: vehictl/system/relayd/status
func (Topics) ServiceStatus(service string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixSystem, service)
}
