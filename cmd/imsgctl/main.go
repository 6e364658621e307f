package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/matheus3301/imsg/internal/client"
	"github.com/matheus3301/imsg/internal/logging"
	"github.com/matheus3301/imsg/internal/paths"
)

var (
	socketPath string
	jsonOut    bool
	verbose    bool

	logger *zap.Logger
	ctl    *client.Client
)

var rootCmd = &cobra.Command{
	Use:   "imsgctl",
	Short: "Query and drive a running imsg",
	Long: `imsgctl talks to the imsg terminal client over its control socket.
imsg must be running in another terminal.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger = zap.NewNop()
		if verbose {
			l, err := logging.New(filepath.Join(paths.LogDir(), "imsgctl.log"), "imsgctl",
				logging.Options{Level: "debug", Console: true})
			if err != nil {
				return err
			}
			logger = l
		}
		if socketPath == "" {
			socketPath = paths.SocketPath()
		}
		c, err := client.New(socketPath)
		if err != nil {
			return err
		}
		ctl = c
		return nil
	},
	PersistentPostRunE: func(*cobra.Command, []string) error {
		_ = logger.Sync()
		if ctl != nil {
			return ctl.Close()
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		resp, err := call(cmd.Context(), "Status", func(ctx context.Context) (*structpb.Struct, error) {
			return ctl.Control.Status(ctx)
		})
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(resp)
		}
		f := resp.GetFields()
		fmt.Printf("State:          %s\n", f["state"].GetStringValue())
		fmt.Printf("chat.db:        %s\n", f["chat_db"].GetStringValue())
		fmt.Printf("Last ROWID:     %s\n", humanize.Comma(int64(f["last_seen_max_rowid"].GetNumberValue())))
		fmt.Printf("Conversations:  %d\n", int(f["conversations"].GetNumberValue()))
		fmt.Printf("Other services: %v\n", f["other_services"].GetBoolValue())
		if active := f["active"].GetStringValue(); active != "" {
			fmt.Printf("Active:         %s\n", active)
		}
		uptime := time.Duration(f["uptime_ms"].GetNumberValue()) * time.Millisecond
		fmt.Printf("Uptime:         %s\n", uptime.Round(time.Second))
		return nil
	},
}

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"ls"},
	Short:   "List conversations, most recent first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		resp, err := call(cmd.Context(), "ListConversations", func(ctx context.Context) (*structpb.Struct, error) {
			return ctl.Control.ListConversations(ctx)
		})
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(resp)
		}
		list := resp.GetFields()["conversations"].GetListValue().GetValues()
		if len(list) == 0 {
			fmt.Println("No conversations.")
			return nil
		}
		for _, v := range list {
			f := v.GetStructValue().GetFields()
			when := ""
			if ts, err := time.Parse(time.RFC3339, f["last_activity"].GetStringValue()); err == nil {
				when = humanize.Time(ts)
			}
			marker := " "
			if f["is_group"].GetBoolValue() {
				marker = "#"
			}
			fmt.Printf("%s %-30s %-30s %s\n", marker, f["label"].GetStringValue(), f["key"].GetStringValue(), when)
		}
		return nil
	},
}

var threadCmd = &cobra.Command{
	Use:   "thread <key>",
	Short: "Print the recent messages of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := call(cmd.Context(), "GetThread", func(ctx context.Context) (*structpb.Struct, error) {
			return ctl.Control.GetThread(ctx, args[0])
		})
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(resp)
		}
		if label := resp.GetFields()["label"].GetStringValue(); label != "" {
			fmt.Printf("%s\n\n", label)
		}
		for _, v := range resp.GetFields()["lines"].GetListValue().GetValues() {
			f := v.GetStructValue().GetFields()
			stamp := ""
			if ts, err := time.Parse(time.RFC3339, f["time"].GetStringValue()); err == nil {
				stamp = ts.Local().Format("Jan 02 15:04") + "  "
			}
			sender := f["sender"].GetStringValue()
			if sender == "" {
				fmt.Printf("%s%s\n", stamp, f["body"].GetStringValue())
				continue
			}
			fmt.Printf("%s%s: %s\n", stamp, sender, f["body"].GetStringValue())
		}
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <to> <body...>",
	Short: "Send a message through Messages.app",
	Long: `Send a message. <to> is a conversation key as printed by
"imsgctl conversations", a phone number or an email address.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := client.Context(cmd.Context())
		defer cancel()
		start := time.Now()
		id, err := ctl.Control.SendMessage(ctx, args[0], strings.Join(args[1:], " "))
		logger.Debug("rpc", zap.String("method", "SendMessage"), zap.Duration("took", time.Since(start)), zap.Error(err))
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(structpbString("request_id", id))
		}
		fmt.Printf("Sent (%s)\n", id)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "control socket (default ~/.imsg/imsg.sock)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log calls to stderr")
	rootCmd.AddCommand(statusCmd, conversationsCmd, threadCmd, sendCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// call runs one RPC under the default timeout and logs it.
func call(parent context.Context, method string, fn func(context.Context) (*structpb.Struct, error)) (*structpb.Struct, error) {
	ctx, cancel := client.Context(parent)
	defer cancel()
	start := time.Now()
	resp, err := fn(ctx)
	logger.Debug("rpc", zap.String("method", method), zap.Duration("took", time.Since(start)), zap.Error(err))
	return resp, err
}

func structpbString(key, value string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{key: structpb.NewStringValue(value)}}
}

func printJSON(m proto.Message) error {
	b, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(m)
	if err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	_, err = fmt.Println(string(b))
	return err
}
