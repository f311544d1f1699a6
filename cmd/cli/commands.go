package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/and161185/ironkeep/internal/jwtclaims"
	"github.com/and161185/ironkeep/internal/model"
	"github.com/and161185/ironkeep/pkg/sdk"
)

func envOr(v, key string) string {
	if v != "" {
		return v
	}
	return os.Getenv(key)
}

// identity resolves the identity JWT and password flags.
func identity(jwt, password string) (string, string, error) {
	jwt, password = envOr(jwt, "IK_JWT"), envOr(password, "IK_PASSWORD")
	if jwt == "" {
		return "", "", errors.New("--jwt is required (or set IK_JWT)")
	}
	if password == "" {
		return "", "", errors.New("--password is required (or set IK_PASSWORD)")
	}
	return jwt, password, nil
}

func optional[T any](raw string, validate func(string) (T, error)) (*T, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := validate(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// addDevice authorizes a new device and stores its context at the --device path.
func addDevice(ctx context.Context, g *globals, b sdk.Backend, jwt, password, name string) error {
	n, err := optional(name, model.ValidateDeviceName)
	if err != nil {
		return err
	}
	res, err := sdk.GenerateNewDevice(ctx, b, jwt, password, model.DeviceCreateOpts{Name: n})
	if err != nil {
		return err
	}
	dev, err := res.Context()
	if err != nil {
		return err
	}
	if err := saveDevice(g.devicePath, dev); err != nil {
		return err
	}
	fmt.Fprintf(g.out, "device %d authorized for %s, saved to %s\n", res.DeviceID, res.AccountID, g.devicePath)
	return nil
}

func userCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage the account"}
	var jwt, password, deviceName string
	var rotate bool
	create := &cobra.Command{
		Use:   "create",
		Short: "Create the account named by an identity JWT and authorize this device",
		RunE: func(cmd *cobra.Command, args []string) error {
			jwt, password, err := identity(jwt, password)
			if err != nil {
				return err
			}
			b, closer, err := g.connect(g)
			if err != nil {
				return err
			}
			defer closer.Close()
			ctx := cmd.Context()
			if _, err := sdk.UserCreate(ctx, b, jwt, password, model.UserCreateOpts{NeedsRotation: rotate}); err != nil {
				return err
			}
			return addDevice(ctx, g, b, jwt, password, deviceName)
		},
	}
	create.Flags().StringVar(&jwt, "jwt", "", "identity JWT (or set IK_JWT)")
	create.Flags().StringVar(&password, "password", "", "password protecting the account key (or set IK_PASSWORD)")
	create.Flags().StringVar(&deviceName, "device-name", "", "name of this device")
	create.Flags().BoolVar(&rotate, "needs-rotation", false, "mark the account key for rotation")
	cmd.AddCommand(create)
	return cmd
}

type deviceView struct {
	AccountID        string `json:"accountId"`
	SegmentID        int64  `json:"segmentId"`
	SigningPublicKey string `json:"signingPublicKey"`
	PublicKey        string `json:"publicKey"`
}

func deviceCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{Use: "device", Short: "Manage device contexts"}

	var jwt, password, name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Authorize a new device for an existing account",
		RunE: func(cmd *cobra.Command, args []string) error {
			jwt, password, err := identity(jwt, password)
			if err != nil {
				return err
			}
			b, closer, err := g.connect(g)
			if err != nil {
				return err
			}
			defer closer.Close()
			return addDevice(cmd.Context(), g, b, jwt, password, name)
		},
	}
	create.Flags().StringVar(&jwt, "jwt", "", "identity JWT (or set IK_JWT)")
	create.Flags().StringVar(&password, "password", "", "account password (or set IK_PASSWORD)")
	create.Flags().StringVar(&name, "name", "", "device name")

	inspect := &cobra.Command{
		Use:   "inspect",
		Short: "Show the public parts of the device context",
		RunE: func(cmd *cobra.Command, args []string) error {
			dev, err := loadDevice(g.devicePath)
			if err != nil {
				return err
			}
			pub, err := dev.PublicKey()
			if err != nil {
				return err
			}
			printJSON(g.out, deviceView{
				AccountID:        dev.AccountID().ID(),
				SegmentID:        dev.SegmentID(),
				SigningPublicKey: base64.StdEncoding.EncodeToString(dev.SigningPublicKey()),
				PublicKey:        base64.StdEncoding.EncodeToString(pub),
			})
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the account's devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closer, err := g.session(cmd.Context())
			if err != nil {
				return err
			}
			defer closer.Close()
			res, err := s.UserListDevices(cmd.Context())
			if err != nil {
				return err
			}
			for _, d := range res.Devices {
				cur := ""
				if d.IsCurrentDevice {
					cur = " (current)"
				}
				name := ""
				if d.Name != nil {
					name = " " + d.Name.Name()
				}
				fmt.Fprintf(g.out, "%d%s%s\t%s\n", d.ID, name, cur, d.Created.Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.AddCommand(create, inspect, list)
	return cmd
}

type claimsView struct {
	Algorithm string  `json:"alg"`
	Subject   string  `json:"sub"`
	IssuedAt  int64   `json:"iat"`
	ExpiresAt int64   `json:"exp"`
	Expired   bool    `json:"expired"`
	ProjectID *uint32 `json:"pid,omitempty"`
	SegmentID *uint32 `json:"sid,omitempty"`
	KeyID     *uint32 `json:"kid,omitempty"`
	UserID    *string `json:"uid,omitempty"`
}

func some[T any](v T, ok bool) *T {
	if !ok {
		return nil
	}
	return &v
}

func jwtCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{Use: "jwt", Short: "Identity JWT helpers"}
	cmd.AddCommand(&cobra.Command{
		Use:   "inspect TOKEN",
		Short: "Validate the structure of an identity JWT and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := jwtclaims.Validate(args[0])
			if err != nil {
				return err
			}
			c := tok.Claims
			v := claimsView{
				Algorithm: tok.Algorithm,
				Subject:   c.Subject,
				IssuedAt:  c.IssuedAt,
				ExpiresAt: c.ExpiresAt,
				Expired:   c.Expired(time.Now(), 0),
			}
			v.ProjectID = some(c.ProjectID())
			v.SegmentID = some(c.SegmentID())
			v.KeyID = some(c.KeyID())
			v.UserID = some(c.UserID())
			printJSON(g.out, v)
			return nil
		},
	})
	return cmd
}

func idCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{Use: "id", Short: "Identifier helpers"}
	var kind string
	validate := &cobra.Command{
		Use:   "validate VALUE",
		Short: "Check an id or name against the key server rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			switch kind {
			case "user":
				_, err = model.ValidateUserID(args[0])
			case "group":
				_, err = model.ValidateGroupID(args[0])
			case "document":
				_, err = model.ValidateDocumentID(args[0])
			case "group-name":
				_, err = model.ValidateGroupName(args[0])
			case "document-name":
				_, err = model.ValidateDocumentName(args[0])
			case "device-name":
				_, err = model.ValidateDeviceName(args[0])
			default:
				return fmt.Errorf("unknown kind %q", kind)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(g.out, "ok")
			return nil
		},
	}
	validate.Flags().StringVar(&kind, "kind", "user", "user|group|document|group-name|document-name|device-name")
	cmd.AddCommand(validate)
	return cmd
}

type grantsView struct {
	ID      string   `json:"id"`
	Granted []string `json:"granted"`
	Failed  []string `json:"failed,omitempty"`
}

func grantsOf(id string, ok []model.UserOrGroup, failed []model.DocAccessEditErr) grantsView {
	v := grantsView{ID: id}
	for _, g := range ok {
		v.Granted = append(v.Granted, g.String())
	}
	for _, f := range failed {
		v.Failed = append(v.Failed, fmt.Sprintf("%s: %v", f.Target, f.Err))
	}
	return v
}

func encryptCmd(g *globals) *cobra.Command {
	var in, out, edeksPath, name, id string
	var users, groups []string
	var noSelf, unmanaged bool
	cmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt a file to yourself, users and groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			if unmanaged && edeksPath == "" {
				return errors.New("--unmanaged requires --edeks")
			}
			opts := model.DocumentEncryptOpts{DontGrantToSelf: noSelf}
			var err error
			if opts.UserGrants, err = model.UserIDs(users); err != nil {
				return err
			}
			if opts.GroupGrants, err = model.GroupIDs(groups); err != nil {
				return err
			}
			if opts.Name, err = optional(name, model.ValidateDocumentName); err != nil {
				return err
			}
			if opts.ID, err = optional(id, model.ValidateDocumentID); err != nil {
				return err
			}
			data, err := readAll(in)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			s, closer, err := g.session(ctx)
			if err != nil {
				return err
			}
			defer closer.Close()

			if unmanaged {
				res, err := s.DocumentEncryptUnmanaged(ctx, data, opts)
				if err != nil {
					return err
				}
				if err := os.WriteFile(edeksPath, res.EncryptedDEKs, 0o600); err != nil {
					return err
				}
				if err := writeAll(g, out, res.EncryptedData); err != nil {
					return err
				}
				printJSON(cmd.ErrOrStderr(), grantsOf(res.ID.ID(), res.Grants, res.AccessErrs))
				return nil
			}
			res, err := s.DocumentEncrypt(ctx, data, opts)
			if err != nil {
				return err
			}
			if err := writeAll(g, out, res.EncryptedData); err != nil {
				return err
			}
			printJSON(cmd.ErrOrStderr(), grantsOf(res.ID.ID(), res.Grants, res.AccessErrs))
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "-", "plaintext file, - for stdin")
	cmd.Flags().StringVar(&out, "out", "-", "ciphertext file, - for stdout")
	cmd.Flags().StringVar(&id, "id", "", "document id (generated when empty)")
	cmd.Flags().StringVar(&name, "name", "", "document name")
	cmd.Flags().StringSliceVar(&users, "user", nil, "grant to user (repeatable)")
	cmd.Flags().StringSliceVar(&groups, "group", nil, "grant to group (repeatable)")
	cmd.Flags().BoolVar(&noSelf, "no-self", false, "do not grant to yourself")
	cmd.Flags().BoolVar(&unmanaged, "unmanaged", false, "keep the wrapped keys locally instead of on the server")
	cmd.Flags().StringVar(&edeksPath, "edeks", "", "wrapped key file for --unmanaged")
	return cmd
}

func decryptCmd(g *globals) *cobra.Command {
	var in, out, edeksPath string
	cmd := &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt a document; pass --edeks for unmanaged documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readAll(in)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s, closer, err := g.session(ctx)
			if err != nil {
				return err
			}
			defer closer.Close()

			if edeksPath != "" {
				edeks, err := os.ReadFile(edeksPath)
				if err != nil {
					return err
				}
				res, err := s.DocumentDecryptUnmanaged(ctx, data, edeks)
				if err != nil {
					return err
				}
				return writeAll(g, out, res.DecryptedData)
			}
			res, err := s.DocumentDecrypt(ctx, data)
			if err != nil {
				return err
			}
			return writeAll(g, out, res.DecryptedData)
		},
	}
	cmd.Flags().StringVar(&in, "in", "-", "ciphertext file, - for stdin")
	cmd.Flags().StringVar(&out, "out", "-", "plaintext file, - for stdout")
	cmd.Flags().StringVar(&edeksPath, "edeks", "", "wrapped key file of an unmanaged document")
	return cmd
}

func groupCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{Use: "group", Short: "Manage groups"}

	var id, name string
	var members, admins []string
	var notMember bool
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a group you own",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := model.NewGroupCreateOpts()
			opts.AddAsMember = !notMember
			var err error
			if opts.ID, err = optional(id, model.ValidateGroupID); err != nil {
				return err
			}
			if opts.Name, err = optional(name, model.ValidateGroupName); err != nil {
				return err
			}
			if opts.Members, err = model.UserIDs(members); err != nil {
				return err
			}
			if opts.Admins, err = model.UserIDs(admins); err != nil {
				return err
			}
			ctx := cmd.Context()
			s, closer, err := g.session(ctx)
			if err != nil {
				return err
			}
			defer closer.Close()
			res, err := s.GroupCreate(ctx, opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(g.out, res.ID)
			return nil
		},
	}
	create.Flags().StringVar(&id, "id", "", "group id (generated when empty)")
	create.Flags().StringVar(&name, "name", "", "group name")
	create.Flags().StringSliceVar(&members, "member", nil, "member (repeatable)")
	create.Flags().StringSliceVar(&admins, "admin", nil, "admin (repeatable)")
	create.Flags().BoolVar(&notMember, "not-member", false, "do not add yourself as a member")

	list := &cobra.Command{
		Use:   "list",
		Short: "List groups you administer or belong to",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closer, err := g.session(cmd.Context())
			if err != nil {
				return err
			}
			defer closer.Close()
			res, err := s.GroupList(cmd.Context())
			if err != nil {
				return err
			}
			for _, gm := range res.Groups {
				role := "member"
				if gm.IsAdmin {
					role = "admin"
				}
				n := ""
				if gm.Name != nil {
					n = gm.Name.Name()
				}
				fmt.Fprintf(g.out, "%s\t%s\t%s\n", gm.ID, role, n)
			}
			return nil
		},
	}

	cmd.AddCommand(create, list)
	return cmd
}
