// Package mqtt provides optional MQTT state publishing for the VehiCtrl services.
//
// When enabled, relayd publishes every relay channel write and registryd
// publishes the registration state, both as retained messages, so a
// dashboard on the vehicle network can follow the current state without
// polling the HTTP endpoints.
//
// # Topics
//
//	vehictl/state/relay/<channel>     relay channel state (retained)
//	vehictl/state/registration        registration state (retained)
//	vehictl/system/<service>/status   online/offline with LWT (retained)
//
// # Usage
//
//	client := mqtt.NewClient(cfg.MQTT, "relayd")
//	defer client.Close()
//	client.SetOnConnect(publishAll)
//	if err := client.Connect(); err != nil {
//	    log.Warn("broker unavailable, retrying", "error", err)
//	}
//
//	err := client.PublishState(mqtt.Topics{}.RelayState("starter"), payload)
//
// A broker that is down at startup is not fatal: the client keeps retrying
// and publishes fail with ErrNotConnected until it connects. Publishing never
// carries history; only the latest state is retained.
package mqtt
