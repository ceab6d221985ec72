package shutdown

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/iotaledger/hive.go/daemon"
	"github.com/iotaledger/hive.go/logger"
)

// ShutdownHandler waits until a shutdown signal was received or the daemon tried to shut down itself,
// and shuts down all background workers gracefully.
type ShutdownHandler struct {
	log          *logger.Logger
	daemon       daemon.Daemon
	waitToKill   time.Duration
	gracefulStop chan os.Signal
	selfShutdown chan string
}

// NewShutdownHandler creates a new shutdown handler.
// The process is killed if the background workers did not stop within waitToKill.
func NewShutdownHandler(log *logger.Logger, daemon daemon.Daemon, waitToKill time.Duration) *ShutdownHandler {

	gs := &ShutdownHandler{
		log:          log,
		daemon:       daemon,
		waitToKill:   waitToKill,
		gracefulStop: make(chan os.Signal, 1),
		selfShutdown: make(chan string),
	}

	signal.Notify(gs.gracefulStop, syscall.SIGTERM)
	signal.Notify(gs.gracefulStop, syscall.SIGINT)

	return gs
}

// SelfShutdown can be called in order to instruct the daemon to shut down cleanly without receiving any interrupt signals.
func (gs *ShutdownHandler) SelfShutdown(msg string) {
	select {
	case gs.selfShutdown <- msg:
	default:
	}
}

// Run starts the ShutdownHandler go routine.
func (gs *ShutdownHandler) Run() {

	go func() {
		select {
		case <-gs.gracefulStop:
			gs.log.Warnf("Received shutdown request - waiting (max %v) to finish processing ...", gs.waitToKill)
		case msg := <-gs.selfShutdown:
			gs.log.Warnf("Self-shutdown: %s; waiting (max %v) to finish processing ...", msg, gs.waitToKill)
		}

		go func() {
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()

			deadline := time.Now().Add(gs.waitToKill)
			for now := range ticker.C {
				if now.After(deadline) {
					gs.log.Fatal("Background workers did not terminate in time! Forcing shutdown ...")
				}

				processList := ""
				if running := gs.daemon.GetRunningBackgroundWorkers(); len(running) >= 1 {
					processList = "(" + strings.Join(running, ", ") + ") "
				}
				gs.log.Warnf("Received shutdown request - waiting (max %v) to finish processing %s...", deadline.Sub(now).Truncate(time.Second), processList)
			}
		}()

		gs.daemon.ShutdownAndWait()
	}()
}
