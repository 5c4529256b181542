// Package mqttbridge relays MQTT commands to Freesat boxes and publishes
// their power state for home automation systems.
//
// # Topics
//
// With the default prefix "freesat":
//
//	freesat/<identity>/keys/set   command: a key string ("Play", "702")
//	freesat/<identity>/code/set   command: a raw key code ("415")
//	freesat/<identity>/ack        outcome of the last command (not retained)
//	freesat/<identity>/power      retained JSON power state, published on change
//	freesat/bridge/status         retained "online" / "offline"
//
// The paho adapter registers "offline" as the connection's will so a crashed
// bridge is reported as offline by the broker.
//
// # Usage
//
//	topics := mqttbridge.NewTopics(cfg.TopicPrefix)
//	broker, err := mqttbridge.ConnectPaho(mqttbridge.BrokerConfig{URL: cfg.Broker}, topics)
//	if err != nil {
//	    return err
//	}
//	defer broker.Close()
//	return mqttbridge.New(broker, client, topics, devices, 5*time.Second).Run(ctx)
package mqttbridge
