package realtime

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/alarm-messenger/relay-server-go/internal/transport"
)

// ServeConn runs the inbound side of one connection until it closes or
// ctx is cancelled. Register frames bind the connection to a device id;
// every other frame only refreshes liveness. A connection that has not
// registered within the register timeout is closed.
func (r *Registry) ServeConn(ctx context.Context, conn transport.Conn) {
	var sess *Session

	registerTimer := time.NewTimer(r.registerTimeout)
	defer registerTimer.Stop()
	registerDeadline := registerTimer.C

	defer func() {
		if sess != nil {
			r.Detach(sess)
			return
		}
		_ = conn.Close()
	}()

	events := conn.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case <-registerDeadline:
			log.Info().Dur("timeout", r.registerTimeout).Msg("closing connection that never registered")
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Kind {
			case transport.EventPong:
				if sess != nil {
					sess.Ack()
				}
			case transport.EventMessage:
				if sess != nil {
					sess.Ack()
				}
				next, err := r.handleFrame(conn, sess, ev.Data)
				// next may already be registered even when the ack failed.
				sess = next
				if err != nil {
					log.Debug().Err(err).Msg("failed to acknowledge registration")
					return
				}
				if sess != nil && registerDeadline != nil {
					registerTimer.Stop()
					registerDeadline = nil
				}
			case transport.EventClose:
				if sess != nil {
					log.Info().Str("deviceId", sess.DeviceID).Msg("device disconnected")
				}
				return
			case transport.EventError:
				log.Warn().Err(ev.Err).Msg("websocket read error")
				return
			}
		}
	}
}

func (r *Registry) handleFrame(conn transport.Conn, sess *Session, data []byte) (*Session, error) {
	env, err := ParseEnvelope(data)
	if err != nil {
		log.Warn().Err(err).Int("bytes", len(data)).Msg("ignoring malformed frame")
		return sess, nil
	}

	switch env.Type {
	case TypeRegister:
		if env.DeviceID == "" {
			log.Warn().Msg("ignoring register frame without deviceId")
			return sess, nil
		}
		if sess != nil && sess.DeviceID != env.DeviceID {
			r.release(sess)
		}
		sess = r.Register(env.DeviceID, conn)

		ack, err := EncodeRegistered(env.DeviceID)
		if err != nil {
			return sess, err
		}
		return sess, conn.Send(ack)
	default:
		log.Debug().Str("type", env.Type).Msg("ignoring unknown frame type")
		return sess, nil
	}
}
