package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/just-every/demo-ui-sub000/protocol"
)

var schemaCmd = &cobra.Command{
	Use:   "schema [event-type]",
	Short: "Print JSON schemas for the event vocabulary",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			out, err := protocol.SchemasJSON()
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}

		schema, ok := protocol.SchemaFor(protocol.EventType(args[0]))
		if !ok {
			return fmt.Errorf("unknown event type %q (known: %v)", args[0], protocol.EventTypes())
		}
		out, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
