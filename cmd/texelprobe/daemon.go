// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/texelprobe/daemon.go
// Summary: The daemon subcommand: run a program and publish its screen.
// Usage: texelprobe daemon -socket /tmp/app.sock -- program [args]

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/framegrace/texelprobe/config"
	"github.com/framegrace/texelprobe/daemon"
	"github.com/framegrace/texelprobe/ptyproc"
	"github.com/framegrace/texelprobe/screen"
)

const stopTimeout = 5 * time.Second

// dataFile resolves a daemon path: flag, then the daemon config key, then
// name under the cache directory. The parent directory is created.
func (a *app) dataFile(flagValue, key, name string) (string, error) {
	p := flagValue
	if p == "" {
		p = a.cfg.GetString(config.SectionDaemon, key, "")
	}
	if p == "" {
		var err error
		if p, err = config.DataPath(name); err != nil {
			return "", err
		}
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", err
	}
	return p, nil
}

func daemonCommand(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("daemon", "[flags] -- program [args]")
	cols := fs.Int("cols", 0, "Terminal width (default from config)")
	rows := fs.Int("rows", 0, "Terminal height (default from config)")
	socket := fs.String("socket", "", "Control socket path (default from config)")
	shm := fs.String("shm", "", "Shared snapshot file (default from config)")
	snapshot := fs.String("snapshot", "", "Persist the final screen to this JSON file")
	pidPath := fs.String("pidfile", "", "Refuse to start while this PID file names a live daemon")
	status := fs.Bool("status", false, "Ping a running daemon and exit")
	if ok, err := parse(fs, args); !ok {
		return err
	}

	sockPath, err := a.dataFile(*socket, "socket", "daemon.sock")
	if err != nil {
		return err
	}
	if *status {
		rtt, err := daemon.HealthCheck(ctx, sockPath, 2*time.Second)
		if err != nil {
			return fmt.Errorf("daemon at %s: %w", sockPath, err)
		}
		fmt.Fprintf(a.stdout, "daemon at %s is up (rtt %v)\n", sockPath, rtt)
		return nil
	}

	program, progArgs, err := splitCommand(fs.Args())
	if err != nil {
		fs.Usage()
		return err
	}
	shmPath, err := a.dataFile(*shm, "shm", "screen.shm")
	if err != nil {
		return err
	}

	if *pidPath != "" {
		pf := pidFile{path: *pidPath}
		if err := pf.acquire(os.Getpid()); err != nil {
			return err
		}
		defer func() {
			if err := pf.release(os.Getpid()); err != nil {
				log.Printf("texelprobe: remove PID file: %v", err)
			}
		}()
	}

	hc := a.harnessConfig(*cols, *rows)
	proc, err := ptyproc.Start(ctx, ptyproc.Config{Program: program, Args: progArgs, Cols: hc.Cols, Rows: hc.Rows})
	if err != nil {
		return err
	}
	defer proc.Close()

	scr, err := screen.New(hc.Cols, hc.Rows, a.screenOptions()...)
	if err != nil {
		return err
	}
	pub, err := daemon.NewPublisher(shmPath, hc.Cols, hc.Rows)
	if err != nil {
		return err
	}
	defer pub.Close()

	sess, err := daemon.NewSession(proc, scr, pub)
	if err != nil {
		return err
	}
	sess.SetObserver(daemon.NewPublishLogger(log.Default(),
		a.cfg.GetDuration(config.SectionDaemon, "slow_publish", 5*time.Millisecond)))

	srv := daemon.NewServer(sockPath, sess)
	storePath := *snapshot
	if storePath == "" {
		storePath = a.cfg.GetString(config.SectionDaemon, "snapshot_store", "")
	}
	if storePath != "" {
		srv.SetSnapshotStore(daemon.NewSnapshotStore(storePath))
	}

	if err := sess.Start(); err != nil {
		return err
	}
	defer sess.Close()
	if err := srv.Start(); err != nil {
		return err
	}
	id := sess.ID()
	fmt.Fprintf(a.stdout, "session %s pid %d\nsocket %s\nshm %s\n", daemon.FormatUUID(id), proc.Pid(), sockPath, pub.Path())

	select {
	case <-ctx.Done():
		log.Printf("texelprobe: signal received, shutting down")
	case <-srv.ShutdownRequested():
		log.Printf("texelprobe: shutdown requested by client")
	case <-sess.Done():
		log.Printf("texelprobe: %s exited (code %d)", program, proc.ExitCode())
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return srv.Stop(stopCtx)
}
