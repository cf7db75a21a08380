package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"liveclass/internal/core/domain"
	"liveclass/internal/core/services"
	"liveclass/internal/infrastructure/console"
	"liveclass/internal/infrastructure/repositories/memory"
	"liveclass/internal/infrastructure/signalclient"
	webrtcinfra "liveclass/internal/infrastructure/webrtc"
	"liveclass/pkg/config"
	"liveclass/pkg/logger"
	"liveclass/pkg/retry"

	"github.com/pion/webrtc/v3"
)

func main() {
	var (
		apiURL   = flag.String("api", "http://localhost:8080", "relay HTTP API base URL")
		relayURL = flag.String("relay", "ws://localhost:8080/ws", "relay websocket URL")
		roomCode = flag.String("room", "", "room code to join, created when empty and -teacher is set")
		username = flag.String("username", "", "display name")
		title    = flag.String("title", "Lesson", "room title when creating a room")
		teacher  = flag.Bool("teacher", false, "create the room and join as teacher")
		cfgPath  = flag.String("config", "configs/config.yaml", "config file path")
	)
	flag.Parse()

	if *username == "" {
		fmt.Fprintln(os.Stderr, "-username is required")
		os.Exit(1)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	// Obtain a join token from the rooms API.
	code, role, token, err := join(*apiURL, *roomCode, *title, *username, *teacher)
	if err != nil {
		log.Fatalw("failed to join room", "error", err)
	}
	fmt.Printf("* joined room %s as %s\n", code, role)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	relayClient, err := signalclient.Dial(ctx, signalclient.Config{
		URL:       *relayURL,
		JoinToken: token,
		Retry:     retry.DefaultConfig(),
	}, log)
	if err != nil {
		log.Fatalw("failed to connect to relay", "error", err)
	}
	defer relayClient.Close()

	// WebRTC configuration (including STUN/TURN from config)
	var iceServers []webrtc.ICEServer
	for _, s := range cfg.WebRTC.ICEServers {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	if len(iceServers) == 0 {
		iceServers = []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		}
	}

	transports := webrtcinfra.NewPionTransportFactory(webrtcinfra.TransportConfig{
		ICEServers: iceServers,
	}, log)
	sources := webrtcinfra.NewSyntheticSourceFactory(log)
	notifier := console.NewNotifier(log)

	orch := services.NewOrchestrator(
		domain.Username(*username),
		role,
		memory.NewParticipantRegistry(),
		relayClient,
		transports,
		sources,
		notifier,
		log,
	)

	orchDone := make(chan error, 1)
	go func() { orchDone <- orch.Run(ctx) }()

	go commandLoop(ctx, os.Stdin, orch, role)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-orchDone:
		if err != nil {
			log.Errorw("session ended with error", "error", err)
		}
	case <-sigChan:
		fmt.Println("* leaving room")
		cancel()
		<-orchDone
	}
}

// sessionCommands is the slice of the orchestrator the interactive loop
// drives.
type sessionCommands interface {
	StartBroadcast(ctx context.Context, kind domain.CaptureKind) error
	StopBroadcast(ctx context.Context) error
	StartUpload(ctx context.Context, kind domain.CaptureKind) error
	StopUpload(ctx context.Context) error
	GrantPermission(ctx context.Context, target domain.Username, perm domain.Permission, status bool) error
	SendChat(ctx context.Context, message string) error
}

// commandLoop reads interactive commands line by line. Unrecognized lines
// are sent as chat messages.
func commandLoop(ctx context.Context, input io.Reader, orch sessionCommands, role domain.Role) {
	scanner := bufio.NewScanner(input)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)

		var err error
		switch fields[0] {
		case "/broadcast":
			if role != domain.RoleTeacher {
				fmt.Println("! only the teacher broadcasts; use /upload")
				continue
			}
			err = orch.StartBroadcast(ctx, captureKind(fields))
		case "/upload":
			if role != domain.RoleStudent {
				fmt.Println("! only students upload; use /broadcast")
				continue
			}
			err = orch.StartUpload(ctx, captureKind(fields))
		case "/stop":
			if role == domain.RoleTeacher {
				err = orch.StopBroadcast(ctx)
			} else {
				err = orch.StopUpload(ctx)
			}
		case "/grant", "/revoke":
			if len(fields) < 3 {
				fmt.Println("! usage: /grant <user> <audio|video|screen>")
				continue
			}
			err = orch.GrantPermission(ctx,
				domain.Username(fields[1]),
				domain.Permission(fields[2]),
				fields[0] == "/grant",
			)
		default:
			err = orch.SendChat(ctx, line)
		}
		if err != nil {
			fmt.Printf("! %v\n", err)
		}
	}
}

func captureKind(fields []string) domain.CaptureKind {
	if len(fields) > 1 {
		return domain.CaptureKind(fields[1])
	}
	return domain.CaptureCamera
}

// join creates the room when acting as teacher with no code, then exchanges
// the username for a join token.
func join(apiURL, code, title, username string, asTeacher bool) (domain.RoomCode, domain.Role, string, error) {
	client := &http.Client{}

	if asTeacher && code == "" {
		body, _ := json.Marshal(map[string]string{"title": title, "username": username})
		resp, err := client.Post(apiURL+"/api/v1/rooms", "application/json", bytes.NewReader(body))
		if err != nil {
			return "", "", "", err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			return "", "", "", fmt.Errorf("create room: unexpected status %d", resp.StatusCode)
		}

		var created struct {
			Room      domain.Room `json:"room"`
			JoinToken string      `json:"join_token"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
			return "", "", "", err
		}
		return created.Room.Code, domain.RoleTeacher, created.JoinToken, nil
	}

	body, _ := json.Marshal(map[string]string{"username": username})
	resp, err := client.Post(
		fmt.Sprintf("%s/api/v1/rooms/%s/join", apiURL, code),
		"application/json", bytes.NewReader(body))
	if err != nil {
		return "", "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", "", fmt.Errorf("join room %s: unexpected status %d", code, resp.StatusCode)
	}

	var joined struct {
		Room      domain.Room `json:"room"`
		Role      domain.Role `json:"role"`
		JoinToken string      `json:"join_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&joined); err != nil {
		return "", "", "", err
	}
	return joined.Room.Code, joined.Role, joined.JoinToken, nil
}
