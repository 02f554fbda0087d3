package port

import (
	"fmt"
	"net"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Reclaim frees the given TCP ports by terminating whichever processes
// hold them, then confirms each port binds again. Test harnesses use it
// to recover ports left behind by crashed nodes. Ports that are already
// free are left alone.
func Reclaim(ports ...uint16) error {
	var g errgroup.Group
	for _, p := range ports {
		g.Go(func() error {
			return reclaimOne(p)
		})
	}
	return g.Wait()
}

func reclaimOne(p uint16) error {
	for attempt := range 5 {
		ln, err := net.Listen("tcp", ":"+strconv.Itoa(int(p)))
		if err == nil {
			ln.Close()
			return nil
		}
		if killErr := killHolder(p); killErr != nil && attempt == 4 {
			return killErr
		}
		// Give the kernel time to tear the socket down before re-probing.
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("port %d is still held after repeated kills", p)
}

// killHolder terminates the process listening on p, if any.
func killHolder(p uint16) error {
	if runtime.GOOS == "windows" {
		out, err := exec.Command("cmd", "/C",
			fmt.Sprintf(`netstat -ano | find "LISTENING" | find ":%d"`, p)).Output()
		if err != nil {
			return fmt.Errorf("finding process on port %d: %w", p, err)
		}
		// netstat row: TCP 0.0.0.0:8080 0.0.0.0:0 LISTENING 1234
		lines := strings.Split(strings.TrimSpace(string(out)), "\n")
		fields := strings.Fields(lines[0])
		if len(fields) < 5 {
			return fmt.Errorf("no process found listening on port %d", p)
		}
		pid := fields[len(fields)-1]
		if err := exec.Command("taskkill", "/F", "/PID", pid).Run(); err != nil {
			return fmt.Errorf("killing process %s on port %d: %w", pid, p, err)
		}
		return nil
	}

	out, _ := exec.Command("bash", "-c",
		fmt.Sprintf("lsof -i tcp:%d | grep LISTEN | awk '{print $2}'", p)).Output()
	if strings.TrimSpace(string(out)) == "" {
		// Nothing is listening; the bind failure was transient.
		return nil
	}

	if err := exec.Command("bash", "-c",
		fmt.Sprintf("lsof -i tcp:%d | grep LISTEN | awk '{print $2}' | xargs kill -9", p)).Run(); err != nil {
		return fmt.Errorf("killing process on port %d: %w", p, err)
	}
	return nil
}
