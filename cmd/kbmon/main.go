package main

import (
	"context"
	"flag"
	"log"

	"github.com/golang/protobuf/jsonpb"

	"github.com/robotalks/splitkb/pkg/env"
	"github.com/robotalks/splitkb/pkg/telemetry/mqtt"
)

func init() {
	env.SetupFlags()
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(env.Default().MQTTURL)
	if err != nil {
		log.Fatalln(err)
	}
	if err := q.Connect(context.Background()); err != nil {
		log.Fatalln(err)
	}

	marshaler := &jsonpb.Marshaler{}
	q.Sub("#", mqtt.Handler(func(topic string, payload []byte) {
		if len(payload) == 0 {
			log.Printf("%s: (cleared)", topic)
			return
		}
		msg, err := mqtt.DecodeStruct(payload)
		if err != nil {
			log.Printf("%s: bad message: %v", topic, err)
			return
		}
		out, err := marshaler.MarshalToString(msg)
		if err != nil {
			log.Printf("%s: %v", topic, err)
			return
		}
		log.Printf("%s: %s", topic, out)
	}))
	<-(chan struct{})(nil)
}
