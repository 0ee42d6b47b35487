// Package transport provides the byte streams a link runs over: an
// in-memory pipe standing in for the UART between the halves, host serial
// devices, and websocket connections for the simulator.
package transport
