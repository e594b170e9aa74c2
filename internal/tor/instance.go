package tor

import (
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"time"

	"github.com/Ian-Costa18/TorDownloader/internal/utils"
)

const bootstrapTimeout = 90 * time.Second

// Instance is a Tor process launched by this tool. When tor_path is not
// configured the tool assumes an already-running daemon and no Instance is
// created.
type Instance struct {
	SocksPort int
	cmd       *exec.Cmd
}

// StartInstance launches the Tor executable with the configured SocksPort
// and waits until the port accepts connections.
func StartInstance(torPath string, socksPort int) (*Instance, error) {
	log := utils.GetLogger("tor-instance")
	cmd := exec.Command(torPath, "--SocksPort", strconv.Itoa(socksPort), "--quiet")
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("error starting tor from %s: %v", torPath, err)
	}
	log.Info().Str("path", torPath).Int("socksPort", socksPort).Int("pid", cmd.Process.Pid).Msg("Started Tor process")

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(socksPort))
	deadline := time.Now().Add(bootstrapTimeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, time.Second)
		if err == nil {
			conn.Close()
			log.Info().Str("addr", addr).Msg("Tor SOCKS port is accepting connections")
			return &Instance{SocksPort: socksPort, cmd: cmd}, nil
		}
		time.Sleep(time.Second)
	}
	_ = cmd.Process.Kill()
	return nil, fmt.Errorf("tor did not open SOCKS port %d within %s", socksPort, bootstrapTimeout)
}

// Stop terminates the Tor process. Safe to call on a nil Instance.
func (i *Instance) Stop() {
	if i == nil || i.cmd == nil || i.cmd.Process == nil {
		return
	}
	log := utils.GetLogger("tor-instance")
	if err := i.cmd.Process.Kill(); err != nil {
		log.Warn().Err(err).Msg("Error stopping Tor process")
		return
	}
	_ = i.cmd.Wait()
	log.Info().Msg("Stopped Tor process")
}
