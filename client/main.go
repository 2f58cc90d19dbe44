package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/rpc"
	"net/url"
	"os"
	"strings"

	gamebot_rpc "github.com/wfunc/gamebot/rpc"
)

// Operator console for a running bot. Talks HTTP for connect/rooms and
// net/rpc for the admin surface.

func httpGet(base, path string, query url.Values) (string, error) {
	u := base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	resp, err := http.Get(u)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return strings.TrimSpace(string(body)), nil
}

func main() {
	httpAddr := flag.String("http", "http://localhost:3000", "bot HTTP address")
	rpcAddr := flag.String("rpc", "localhost:3001", "bot RPC address")
	flag.Parse()

	rpcClient, err := rpc.Dial("tcp", *rpcAddr)
	if err != nil {
		log.Printf("RPC unavailable (%v), admin commands disabled", err)
	}

	fmt.Println("Commands:")
	fmt.Println("  connect <host> <hub_id>     attach the bot to a room")
	fmt.Println("  rooms                       list connected rooms")
	fmt.Println("  state <hub_id>              show a room's game state")
	fmt.Println("  stats <hub_id>              show a room's stored stats")
	fmt.Println("  announce [hub_id] <text>    send a chat message")
	fmt.Println("  quit")

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "quit", "exit":
			return

		case "connect":
			if len(args) != 3 {
				fmt.Println("usage: connect <host> <hub_id>")
				continue
			}
			query := url.Values{"host": {args[1]}, "hub_id": {args[2]}}
			out, err := httpGet(*httpAddr, "/connect", query)
			if err != nil {
				fmt.Println("connect failed:", err)
				continue
			}
			fmt.Println(out)

		case "rooms":
			out, err := httpGet(*httpAddr, "/rooms", nil)
			if err != nil {
				fmt.Println("rooms failed:", err)
				continue
			}
			fmt.Println(out)

		case "state":
			if rpcClient == nil || len(args) != 2 {
				fmt.Println("usage: state <hub_id>")
				continue
			}
			var reply gamebot_rpc.RoomStateReply
			err := rpcClient.Call("BotService.RoomState", &gamebot_rpc.RoomStateArgs{HubID: args[1]}, &reply)
			if err != nil {
				fmt.Println("state failed:", err)
				continue
			}
			fmt.Printf("state=%s game=%s turn=%d players=%v\n",
				reply.State, reply.GameType, reply.TurnIndex, reply.Players)

		case "stats":
			if rpcClient == nil || len(args) != 2 {
				fmt.Println("usage: stats <hub_id>")
				continue
			}
			var reply gamebot_rpc.RoomStatsReply
			err := rpcClient.Call("BotService.RoomStats", &gamebot_rpc.RoomStatsArgs{HubID: args[1]}, &reply)
			if err != nil {
				fmt.Println("stats failed:", err)
				continue
			}
			fmt.Printf("games=%d scenes=%d playtime=%ds\n",
				reply.Stats.TotalGames, reply.Stats.TotalScenes, reply.Stats.PlayTime)

		case "announce":
			if rpcClient == nil || len(args) < 2 {
				fmt.Println("usage: announce [hub_id] <text>")
				continue
			}
			rpcArgs := &gamebot_rpc.AnnounceArgs{Text: strings.Join(args[1:], " ")}
			if len(args) > 2 {
				rpcArgs.HubID = args[1]
				rpcArgs.Text = strings.Join(args[2:], " ")
			}
			var reply gamebot_rpc.AnnounceReply
			if err := rpcClient.Call("BotService.Announce", rpcArgs, &reply); err != nil {
				fmt.Println("announce failed:", err)
				continue
			}
			fmt.Printf("sent to %d room(s)\n", reply.Rooms)

		default:
			fmt.Println("unknown command:", args[0])
		}
	}
}
