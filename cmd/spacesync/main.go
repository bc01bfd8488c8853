package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fluxspace/spacesync/internal/hierarchy"
	"github.com/fluxspace/spacesync/internal/workspace"
)

const usage = `usage: spacesync [flags] <command> [args]

commands:
  spaces                                list spaces
  tree <space>                          print the space hierarchy
  mkdir <space> <name>                  create a folder (-parent for nesting)
  new <space> <name>                    create a process (-folder for placement)
  rename <space> folder|process <id> <name>
  mv <space> folder <id> [parent-id]    move a folder (omit parent for root)
  mv <space> process <id> [folder-id]   move a process (omit folder for root)
  rm <space> folder|process <id>        delete a folder subtree or a process
  path <space> <folder-id>              print the ancestor chain
  stats <space>                         print aggregate counts
  show <space> <process-id>             print one process
  watch                                 watch the private snapshot for external writes
`

func main() {
	baseURL := flag.String("base-url", envOrDefault("SPACESYNC_BASE_URL", "http://127.0.0.1:8000"), "hierarchy API base URL")
	token := flag.String("token", strings.TrimSpace(os.Getenv("SPACESYNC_TOKEN")), "bearer token (optional)")
	snapshotDSN := flag.String("snapshot", envOrDefault("SPACESYNC_SNAPSHOT_DSN", defaultSnapshotPath()), "private snapshot DSN (file path, file://, memory://, postgres://, redis://)")
	timeout := flag.Duration("timeout", durationEnv("SPACESYNC_TIMEOUT", 15*time.Second), "per-request timeout")
	pathTimeout := flag.Duration("path-timeout", durationEnv("SPACESYNC_PATH_TIMEOUT", 10*time.Second), "remote path lookup bound")
	parentID := flag.String("parent", "", "parent folder id for mkdir")
	folderID := flag.String("folder", "", "folder id for new")
	description := flag.String("desc", "", "description for mkdir/new")
	color := flag.String("color", "", "color token for mkdir")
	icon := flag.String("icon", "", "icon for mkdir")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	snapshot, err := workspace.BuildSnapshotStoreFromDSN(*snapshotDSN)
	if err != nil {
		log.Fatalf("snapshot backend: %v", err)
	}
	client := hierarchy.NewHTTPClient(hierarchy.HTTPClientOptions{
		BaseURL:    *baseURL,
		Token:      *token,
		HTTPClient: &http.Client{Timeout: *timeout},
		UserAgent:  "spacesync-cli",
	})
	store, err := workspace.NewStore(workspace.StoreOptions{
		Client:            client,
		Snapshot:          snapshot,
		PathLookupTimeout: *pathTimeout,
		Logger:            log.Default(),
	})
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := commandOptions{
		parentID:    strings.TrimSpace(*parentID),
		folderID:    strings.TrimSpace(*folderID),
		description: strings.TrimSpace(*description),
		color:       strings.TrimSpace(*color),
		icon:        strings.TrimSpace(*icon),
		snapshotDSN: strings.TrimSpace(*snapshotDSN),
	}
	if err := runCommand(ctx, store, args, opts); err != nil {
		log.Fatalf("%s failed: %v", args[0], err)
	}
}

type commandOptions struct {
	parentID    string
	folderID    string
	description string
	color       string
	icon        string
	snapshotDSN string
}

func runCommand(ctx context.Context, store *workspace.Store, args []string, opts commandOptions) error {
	switch args[0] {
	case "spaces":
		for _, space := range store.ListSpaces(ctx) {
			fmt.Printf("%-16s %-8s %-8s %s\n", space.ID, space.Type, space.Role, space.Name)
		}
		return nil
	case "tree":
		if len(args) != 2 {
			return fmt.Errorf("usage: tree <space>")
		}
		tree, err := store.LoadTree(ctx, args[1])
		if err != nil {
			return err
		}
		printTree(tree)
		return nil
	case "mkdir":
		if len(args) != 3 {
			return fmt.Errorf("usage: mkdir <space> <name>")
		}
		req := hierarchy.CreateFolderRequest{
			Name:        args[2],
			Description: opts.description,
			Color:       opts.color,
			Icon:        opts.icon,
		}
		if opts.parentID != "" {
			req.ParentFolderID = &opts.parentID
		}
		folder, err := store.CreateFolder(ctx, args[1], req)
		if err != nil {
			return err
		}
		fmt.Printf("created folder %s (%s)\n", folder.Name, folder.ID)
		return nil
	case "new":
		if len(args) != 3 {
			return fmt.Errorf("usage: new <space> <name>")
		}
		req := hierarchy.CreateProcessRequest{
			Name:        args[2],
			Description: opts.description,
		}
		if opts.folderID != "" {
			req.FolderID = &opts.folderID
		}
		process, err := store.CreateProcess(ctx, args[1], req)
		if err != nil {
			return err
		}
		fmt.Printf("created process %s (%s)\n", process.Name, process.ID)
		return nil
	case "rename":
		if len(args) != 5 {
			return fmt.Errorf("usage: rename <space> folder|process <id> <name>")
		}
		name := args[4]
		switch args[2] {
		case "folder":
			folder, err := store.UpdateFolder(ctx, args[1], args[3], hierarchy.UpdateFolderRequest{Name: &name})
			if err != nil {
				return err
			}
			fmt.Printf("renamed folder %s to %s\n", folder.ID, folder.Name)
		case "process":
			process, err := store.UpdateProcess(ctx, args[1], args[3], hierarchy.UpdateProcessRequest{Name: &name})
			if err != nil {
				return err
			}
			fmt.Printf("renamed process %s to %s\n", process.ID, process.Name)
		default:
			return fmt.Errorf("unknown kind %q", args[2])
		}
		return nil
	case "mv":
		if len(args) != 4 && len(args) != 5 {
			return fmt.Errorf("usage: mv <space> folder|process <id> [target-id]")
		}
		var target *string
		if len(args) == 5 && args[4] != "" {
			target = &args[4]
		}
		switch args[2] {
		case "folder":
			folder, err := store.MoveFolder(ctx, args[1], args[3], target)
			if err != nil {
				return err
			}
			fmt.Printf("moved folder %s\n", folder.ID)
		case "process":
			process, err := store.MoveProcess(ctx, args[1], args[3], target)
			if err != nil {
				return err
			}
			fmt.Printf("moved process %s\n", process.ID)
		default:
			return fmt.Errorf("unknown kind %q", args[2])
		}
		return nil
	case "rm":
		if len(args) != 4 {
			return fmt.Errorf("usage: rm <space> folder|process <id>")
		}
		switch args[2] {
		case "folder":
			if err := store.DeleteFolder(ctx, args[1], args[3]); err != nil {
				return err
			}
		case "process":
			if err := store.DeleteProcess(ctx, args[1], args[3]); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown kind %q", args[2])
		}
		fmt.Printf("deleted %s %s\n", args[2], args[3])
		return nil
	case "path":
		if len(args) != 3 {
			return fmt.Errorf("usage: path <space> <folder-id>")
		}
		if _, err := store.LoadTree(ctx, args[1]); err != nil {
			log.Printf("tree unavailable, relying on remote path lookup: %v", err)
		}
		entries := store.GetFolderPath(ctx, args[1], args[2])
		if len(entries) == 0 {
			fmt.Println("(no path)")
			return nil
		}
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			names = append(names, entry.Name)
		}
		fmt.Println(strings.Join(names, " / "))
		return nil
	case "stats":
		if len(args) != 2 {
			return fmt.Errorf("usage: stats <space>")
		}
		if _, err := store.LoadTree(ctx, args[1]); err != nil {
			log.Printf("tree unavailable, relying on remote stats: %v", err)
		}
		stats := store.GetSpaceStats(ctx, args[1])
		fmt.Printf("folders: %d (root %d)\nprocesses: %d (root %d)\n",
			stats.TotalFolders, stats.RootFolders, stats.TotalProcesses, stats.RootProcesses)
		return nil
	case "show":
		if len(args) != 3 {
			return fmt.Errorf("usage: show <space> <process-id>")
		}
		if _, err := store.LoadTree(ctx, args[1]); err != nil {
			log.Printf("tree unavailable, relying on remote fetch: %v", err)
		}
		process, err := store.GetProcess(ctx, args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\n", process.ID, process.Name)
		if process.Description != "" {
			fmt.Println(process.Description)
		}
		return nil
	case "watch":
		return runWatch(ctx, store, opts.snapshotDSN)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// runWatch keeps the private tree warm and reacts to snapshot rewrites
// by other clients sharing the same snapshot file.
func runWatch(ctx context.Context, store *workspace.Store, snapshotDSN string) error {
	path := snapshotFilePath(snapshotDSN)
	if path == "" {
		return fmt.Errorf("watch requires a file snapshot DSN, got %q", snapshotDSN)
	}
	if _, err := store.LoadTree(ctx, store.PrivateSpaceID()); err != nil {
		log.Printf("initial private load failed: %v", err)
	}
	watcher, err := workspace.NewSnapshotWatcher(store, path, log.Default())
	if err != nil {
		return err
	}
	log.Printf("watching snapshot %s", path)
	if err := watcher.Watch(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func snapshotFilePath(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	switch {
	case dsn == "":
		return ""
	case strings.HasPrefix(dsn, "file://"):
		return strings.TrimPrefix(dsn, "file://")
	case strings.Contains(dsn, "://"):
		return ""
	default:
		return dsn
	}
}

func printTree(tree *hierarchy.SpaceTree) {
	if tree == nil {
		fmt.Println("(no tree)")
		return
	}
	fmt.Printf("%s\n", tree.SpaceID)
	var printFolder func(folder *hierarchy.FolderNode, indent string)
	printFolder = func(folder *hierarchy.FolderNode, indent string) {
		fmt.Printf("%s+ %s (%s)\n", indent, folder.Name, folder.ID)
		for _, process := range folder.Processes {
			fmt.Printf("%s  - %s (%s)\n", indent, process.Name, process.ID)
		}
		for _, child := range folder.Children {
			printFolder(child, indent+"  ")
		}
	}
	for _, folder := range tree.RootFolders {
		printFolder(folder, "")
	}
	for _, process := range tree.RootProcesses {
		fmt.Printf("- %s (%s)\n", process.Name, process.ID)
	}
}

func defaultSnapshotPath() string {
	dataDir := strings.TrimSpace(os.Getenv("SPACESYNC_DATA_DIR"))
	if dataDir == "" {
		dataDir = ".spacesync"
	}
	return dataDir + "/private-snapshot.json"
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func durationEnv(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("invalid %s=%q, using fallback %s", name, raw, fallback.String())
		return fallback
	}
	return value
}
