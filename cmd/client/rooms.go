package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/Tyrowin/roomchat/internal/chat"
)

type roomList struct {
	Rooms []chat.RoomInfo `json:"rooms"`
}

func roomsCmd() *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "List the rooms held by the server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			rooms, err := fetchRooms(ctx, url)
			if err != nil {
				return err
			}
			printRooms(cmd.OutOrStdout(), rooms)
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "http://localhost:8080", "HTTP base URL of the server")
	return cmd
}

func fetchRooms(ctx context.Context, baseURL string) ([]chat.RoomInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(baseURL, "/")+"/rooms", http.NoBody)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list rooms: unexpected status %s", resp.Status)
	}

	var list roomList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode room list: %w", err)
	}
	return list.Rooms, nil
}

func printRooms(w io.Writer, rooms []chat.RoomInfo) {
	if len(rooms) == 0 {
		fmt.Fprintln(w, "No rooms.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Room", "Members", "Messages"})
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	for _, room := range rooms {
		table.Append([]string{room.ID, strconv.Itoa(room.Members), strconv.Itoa(room.Messages)})
	}
	table.Render()
}
