package player

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/vmunix/seiri/internal/archive"
	"github.com/vmunix/seiri/internal/library"
)

// Player launches the configured video player for library episodes and
// records playback progress.
type Player struct {
	store      *library.Store
	codec      *archive.Codec // for playing compressed episodes
	scratchDir string
	command    string
	args       []string
	bridge     *Bridge
	logger     *slog.Logger
}

// New creates a player. codec may be nil when compressed playback is not
// needed.
func New(store *library.Store, codec *archive.Codec, scratchDir, command string, args []string, logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	return &Player{
		store:      store,
		codec:      codec,
		scratchDir: scratchDir,
		command:    command,
		args:       args,
		bridge:     NewBridge(store, time.Second, logger),
		logger:     logger.With("component", "player"),
	}
}

// Play starts the episode and blocks until playback ends, then persists the
// outcome. Compressed episodes are decompressed into a scratch directory
// that is removed when the session ends.
func (p *Player) Play(ctx context.Context, showID string, season, number int) error {
	ep, err := p.store.FindEpisode(showID, season, number)
	if err != nil {
		return err
	}

	path := ep.Path
	switch ep.Status {
	case library.ArchivalGhosted:
		return fmt.Errorf("episode %d of %q is ghosted, no file to play", number, showID)
	case library.ArchivalCompressed:
		if p.codec == nil {
			return fmt.Errorf("episode %d of %q is compressed and no codec is configured", number, showID)
		}
		scratch, err := p.codec.DecompressScratch(ep.ArchivePath, p.scratchDir)
		if err != nil {
			return err
		}
		defer os.RemoveAll(filepath.Dir(scratch))
		path = scratch
	}

	var startPos float64
	if ep.Position > 0 && !ep.Watched {
		startPos = ep.Position
		p.logger.Info("resuming", "show", showID, "episode", number, "position", startPos)
	}

	socket := SocketPath()
	ipc := NewIPC(socket)
	defer ipc.Cleanup()

	cmd := exec.Command(p.command, launchArgs(p.command, p.args, socket, startPos, path)...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launching %s: %w", p.command, err)
	}
	p.logger.Debug("player launched", "command", p.command, "path", path)

	done := make(chan struct{})
	go func() {
		cmd.Wait()
		close(done)
	}()

	_, err = p.bridge.Watch(ctx, ipc, done, showID, season, number)
	if ctx.Err() != nil {
		cmd.Process.Kill()
		<-done
	}
	return err
}

// launchArgs assembles the player command line. Only mpv gets the IPC
// socket; other players play without progress reporting.
func launchArgs(command string, extra []string, socket string, startPos float64, path string) []string {
	args := append([]string(nil), extra...)
	switch {
	case strings.Contains(command, "mpv"):
		args = append(args, "--input-ipc-server="+socket)
		if startPos > 0 {
			args = append(args, fmt.Sprintf("--start=%.0f", startPos))
		}
	case strings.Contains(command, "vlc"):
		if startPos > 0 {
			args = append(args, fmt.Sprintf("--start-time=%.0f", startPos))
		}
	}
	return append(args, path)
}
