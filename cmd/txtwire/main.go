// The txtwire command keeps a device's messaging state synchronized
// with a txtwire account: it can create or join an account, push the
// local store up after login, and restore everything onto a fresh
// install.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/txtwire/txtwire/internal/api"
	"github.com/txtwire/txtwire/internal/blob"
	"github.com/txtwire/txtwire/internal/config"
	"github.com/txtwire/txtwire/internal/crypto"
	"github.com/txtwire/txtwire/internal/media"
	"github.com/txtwire/txtwire/internal/metrics"
	"github.com/txtwire/txtwire/internal/persist"
	"github.com/txtwire/txtwire/internal/record"
	"github.com/txtwire/txtwire/internal/storehttp"
	"github.com/txtwire/txtwire/internal/sync"
	"github.com/txtwire/txtwire/internal/tracehttp"

	_ "github.com/mattn/go-sqlite3"
)

var (
	flagTrace   = flag.Bool("T", false, "request debug tracing")
	flagConfig  = flag.String("config", "", "path to config.yaml")
	flagMetrics = flag.String("metrics", "", "serve Prometheus metrics on this address")
	flagPrimary = flag.Bool("primary", false, "register this install as the account's primary device")
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: txtwire [flags] command [args]

commands:
  signup <name> <email> <phone>  create an account and log in
  login <email>                  log in to an existing account
  logout                         unregister this device and forget the session
  upload                         push the local store to the account
  restore                        pull the account's state onto this device
  remove-account                 delete the account and everything under it
  stats                          show local store counts and sync state

flags:
`)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), flag.Args()[1:]); err != nil {
		log.Fatalf("Failed: %v", err)
	}
}

func run(cmd string, args []string) error {
	cfg, err := config.Load(*flagConfig)
	if err != nil {
		return err
	}
	if *flagTrace {
		cfg.Trace = true
	}
	if *flagMetrics != "" {
		cfg.MetricsAddr = *flagMetrics
	}

	if cfg.Trace {
		tracehttp.WrapDefaultTransport()
	}
	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(cfg.MetricsAddr); err != nil {
				log.Printf("metrics server: %v", err)
			}
		}()
	}

	client, err := api.New(cfg.BaseURL, nil)
	if err != nil {
		return errors.Wrap(err, "unable to initialize the API client")
	}

	creds, err := cfg.LoadSession()
	if err != nil {
		return err
	}
	var coder *crypto.Coder
	if creds.AccountID != "" {
		key := crypto.DeriveKey(creds.AccountID, creds.PasswordHash, []byte(creds.Salt2))
		coder, err = crypto.New(key)
		if err != nil {
			return errors.Wrap(err, "unable to rebuild the encryption key")
		}
		client.SetSession(creds.Session, coder)
	}

	ctx := context.Background()
	switch cmd {
	case "signup":
		if len(args) != 3 {
			return errors.New("signup wants <name> <email> <phone>")
		}
		return signup(ctx, cfg, client, args[0], args[1], args[2])
	case "login":
		if len(args) != 1 {
			return errors.New("login wants <email>")
		}
		return login(ctx, cfg, client, args[0])
	case "logout":
		return logout(ctx, cfg, client, creds)
	case "upload":
		return runSync(ctx, cfg, client, coder, sync.Upload)
	case "restore":
		return runSync(ctx, cfg, client, coder, sync.Restore)
	case "remove-account":
		if err := client.RemoveAccount(ctx); err != nil {
			return err
		}
		return cfg.ClearSession()
	case "stats":
		return stats(ctx, cfg, creds)
	default:
		return errors.Errorf("unknown command %q", cmd)
	}
}

func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", errors.Wrap(err, "unable to read password")
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("empty password")
	}
	return password, nil
}

func signup(ctx context.Context, cfg config.Config, client *api.Client, name, email, phone string) error {
	password, err := promptPassword()
	if err != nil {
		return err
	}
	resp, err := client.Signup(ctx, name, email, password, phone)
	if err != nil {
		return err
	}
	return finishLogin(ctx, cfg, client, resp, password)
}

func login(ctx context.Context, cfg config.Config, client *api.Client, email string) error {
	password, err := promptPassword()
	if err != nil {
		return err
	}
	resp, err := client.Login(ctx, email, password)
	if err != nil {
		return err
	}
	return finishLogin(ctx, cfg, client, resp, password)
}

// finishLogin registers this install as a device on the account,
// derives the encryption key and saves the session.  The password
// itself is never written to disk.
func finishLogin(ctx context.Context, cfg config.Config, client *api.Client, resp *api.LoginResponse, password string) error {
	session := record.Session{
		AccountID: resp.AccountID,
		Primary:   *flagPrimary,
		Salt1:     resp.Salt1,
		Salt2:     resp.Salt2,
	}
	client.SetSession(session, nil)

	deviceID, err := client.AddDevice(ctx, record.Device{
		Name:     config.DeviceName(),
		Primary:  *flagPrimary,
		FCMToken: config.NewDeviceToken(),
	})
	if err != nil {
		return errors.Wrap(err, "unable to register this device")
	}
	session.DeviceID = strconv.FormatInt(deviceID, 10)

	passwordHash := crypto.HashPassword(password, []byte(resp.Salt1))
	key := crypto.DeriveKey(resp.AccountID, passwordHash, []byte(resp.Salt2))
	coder, err := crypto.New(key)
	if err != nil {
		return errors.Wrap(err, "unable to derive the encryption key")
	}
	client.SetSession(session, coder)

	err = cfg.SaveSession(config.Credentials{
		Session:      session,
		Name:         resp.Name,
		PhoneNumber:  resp.PhoneNumber,
		PasswordHash: passwordHash,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Logged in as %s, device %s\n", resp.Name, session.DeviceID)
	return nil
}

func logout(ctx context.Context, cfg config.Config, client *api.Client, creds config.Credentials) error {
	if creds.AccountID == "" {
		return errors.New("not logged in")
	}
	if id, err := strconv.ParseInt(creds.DeviceID, 10, 64); err == nil {
		if err := client.RemoveDevice(ctx, id); err != nil {
			// The session is gone locally either way; the backend
			// prunes unreachable devices on its own.
			log.Printf("unable to unregister device %s: %v", creds.DeviceID, err)
		}
	}
	return cfg.ClearSession()
}

func runSync(ctx context.Context, cfg config.Config, client *api.Client, coder *crypto.Coder,
	op func(context.Context, sync.Backend, *persist.DB, sync.BlobStore, *media.Archive) error) error {
	if coder == nil {
		return errors.New("not logged in")
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return err
	}

	db, err := persist.Open(ctx, cfg.DatabasePath())
	if err != nil {
		return errors.Wrap(err, "unable to initialize database")
	}
	defer db.Close()

	ar, err := media.New(cfg.MediaDir())
	if err != nil {
		return errors.Wrap(err, "unable to initialize the media archive")
	}

	blobs, err := blob.New(cfg.BucketURL, storehttp.New(client), client, coder)
	if err != nil {
		return errors.Wrap(err, "unable to initialize the blob store")
	}

	return op(ctx, client, db, blobs, ar)
}

func stats(ctx context.Context, cfg config.Config, creds config.Credentials) error {
	db, err := persist.Open(ctx, cfg.DatabasePath())
	if err != nil {
		return errors.Wrap(err, "unable to initialize database")
	}
	defer db.Close()

	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	conversations, err := tx.ConversationCount(ctx)
	if err != nil {
		return err
	}
	messages, err := tx.MessageCount(ctx)
	if err != nil {
		return err
	}
	syncPoint, err := tx.LatestSyncPoint(ctx)
	if err != nil {
		return err
	}

	if creds.AccountID != "" {
		fmt.Printf("Account:       %s (%s)\n", creds.Name, creds.PhoneNumber)
		fmt.Printf("Device:        %s\n", creds.DeviceID)
	} else {
		fmt.Println("Account:       not logged in")
	}
	fmt.Printf("Conversations: %d\n", conversations)
	fmt.Printf("Messages:      %d\n", messages)
	if syncPoint == 0 {
		fmt.Println("Last sync:     never")
	} else {
		fmt.Printf("Last sync:     %d\n", syncPoint)
	}
	return nil
}
