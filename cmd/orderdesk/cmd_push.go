package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/orderdesk/pkg/notification"
)

// orderdesk vapid:generate — print a fresh VAPID key pair.
var vapidGenerateCmd = &cobra.Command{
	Use:   "vapid:generate",
	Short: "Generate a VAPID key pair for Web Push",
	RunE: func(cmd *cobra.Command, args []string) error {
		public, private, err := notification.GenerateVAPIDKeys()
		if err != nil {
			return err
		}
		fmt.Println("Add these to your .env:")
		fmt.Println()
		fmt.Printf("VAPID_PUBLIC_KEY=%s\n", public)
		fmt.Printf("VAPID_PRIVATE_KEY=%s\n", private)
		return nil
	},
}
