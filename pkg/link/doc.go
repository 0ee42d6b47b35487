// Package link provides the reliable command/ack protocol spoken between
// the two keyboard halves and between the primary half and the host.
//
// The link runs over a raw byte stream (UART or USB serial) with no
// framing, no flow control and no shared clock. Each envelope is
// serialized, stuffed with COBS and terminated by a zero byte. A Command
// carries an 8-bit id and a one byte checksum over the serialized payload
// and the id; the receiver answers a valid Command with an Ack of the
// same id. The sender waits for the Ack with a fixed timeout and retries
// forever with a fresh id, so delivery is at-least-once.
//
// Three tasks cooperate per Eventer: the Sender, the OutboundProcessor
// (the only writer of the transmitter) and the InboundProcessor (the only
// reader of the receiver). They share the outbound queue and the waiter
// registry.
package link
