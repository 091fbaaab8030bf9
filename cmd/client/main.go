package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/atinyakov/FocusKeeper/internal/client/remote"
	"github.com/atinyakov/FocusKeeper/internal/client/store"
	"github.com/atinyakov/FocusKeeper/internal/client/sync"
	"github.com/atinyakov/FocusKeeper/internal/logger"
	"github.com/atinyakov/FocusKeeper/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	version   string
	buildDate string
)

// repl runs the interactive shell loop, accepting commands to manage the
// productivity collections and the cloud sync session.
func repl(ctx context.Context, st *store.Store, client *remote.Client, session *sync.Session) {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("focuskeeper> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "help":
			fmt.Println("Available commands: help, register <login> <password>, signin <login> <password>, signout,")
			fmt.Println("  todo add <title> | todo list | todo done <id>,")
			fmt.Println("  note add <title>, grocery add <name> | grocery list | grocery check <id>,")
			fmt.Println("  habit add <name> | habit list,")
			fmt.Println("  event add <YYYY-MM-DD> <title> | event list,")
			fmt.Println("  expense add <amount> <desc> | expense list,")
			fmt.Println("  game add <title> | game list, status, exit")
		case "register":
			if len(args) < 3 {
				fmt.Println("Usage: register <login> <password>")
				continue
			}
			if err := client.Register(ctx, args[1], args[2]); err != nil {
				fmt.Println("Registration failed:", err)
				continue
			}
			fmt.Println("Registered. Now sign in.")
		case "signin":
			if len(args) < 3 {
				fmt.Println("Usage: signin <login> <password>")
				continue
			}
			id, err := client.Login(ctx, args[1], args[2])
			if err != nil {
				fmt.Println("Sign-in failed:", err)
				continue
			}
			session.HandleSignIn(ctx, id)
			fmt.Println("Signed in! Data synced")
		case "signout":
			session.HandleSignOut()
			if err := client.Logout(ctx); err != nil {
				fmt.Println("Sign out failed:", err)
				continue
			}
			fmt.Println("Signed out")
		case "status":
			if session.Authenticated() {
				fmt.Println("Signed in, cloud sync active")
			} else {
				fmt.Println("Signed out, local only")
			}
		case "todo":
			todoCmd(st, args[1:])
		case "note":
			noteCmd(st, args[1:])
		case "grocery":
			groceryCmd(st, args[1:])
		case "habit":
			habitCmd(st, args[1:])
		case "event":
			eventCmd(st, args[1:])
		case "expense":
			expenseCmd(st, args[1:])
		case "game":
			gameCmd(st, args[1:])
		case "exit":
			return
		default:
			fmt.Println("Unknown command. Type 'help'.")
		}
	}
}

func todoCmd(st *store.Store, args []string) {
	var todos []models.Todo
	st.Get("t2", &todos)

	switch {
	case len(args) >= 2 && args[0] == "add":
		todos = append(todos, models.Todo{
			ID:    uuid.NewString(),
			Title: strings.Join(args[1:], " "),
			At:    time.Now().UnixMilli(),
		})
		st.Set("t2", todos)
		fmt.Println("Task added")
	case len(args) >= 1 && args[0] == "list":
		for _, t := range todos {
			mark := " "
			if t.Done {
				mark = "x"
			}
			fmt.Printf("[%s] %s  %s\n", mark, t.ID, t.Title)
		}
	case len(args) >= 2 && args[0] == "done":
		for i := range todos {
			if todos[i].ID == args[1] {
				todos[i].Done = !todos[i].Done
				st.Set("t2", todos)
				fmt.Println("Task updated")
				return
			}
		}
		fmt.Println("Task not found")
	default:
		fmt.Println("Usage: todo add <title> | todo list | todo done <id>")
	}
}

func noteCmd(st *store.Store, args []string) {
	var notes []models.Note
	st.Get("nt2", &notes)

	switch {
	case len(args) >= 2 && args[0] == "add":
		notes = append(notes, models.Note{
			ID:    uuid.NewString(),
			Title: strings.Join(args[1:], " "),
			At:    time.Now().UnixMilli(),
		})
		st.Set("nt2", notes)
		fmt.Println("Note added")
	case len(args) >= 1 && args[0] == "list":
		for _, n := range notes {
			fmt.Printf("%s  %s\n", n.ID, n.Title)
		}
	default:
		fmt.Println("Usage: note add <title> | note list")
	}
}

func groceryCmd(st *store.Store, args []string) {
	var items []models.GroceryItem
	st.Get("gr2", &items)

	switch {
	case len(args) >= 2 && args[0] == "add":
		items = append(items, models.GroceryItem{
			ID:      uuid.NewString(),
			Name:    strings.Join(args[1:], " "),
			Qty:     1,
			AddedAt: time.Now().UnixMilli(),
		})
		st.Set("gr2", items)
		fmt.Println("Item added")
	case len(args) >= 1 && args[0] == "list":
		for _, it := range items {
			mark := " "
			if it.Checked {
				mark = "x"
			}
			fmt.Printf("[%s] %s  %s\n", mark, it.ID, it.Name)
		}
	case len(args) >= 2 && args[0] == "check":
		for i := range items {
			if items[i].ID == args[1] {
				items[i].Checked = !items[i].Checked
				st.Set("gr2", items)
				fmt.Println("Item updated")
				return
			}
		}
		fmt.Println("Item not found")
	default:
		fmt.Println("Usage: grocery add <name> | grocery list | grocery check <id>")
	}
}

func habitCmd(st *store.Store, args []string) {
	var habits []models.Habit
	st.Get("h2", &habits)

	switch {
	case len(args) >= 2 && args[0] == "add":
		habits = append(habits, models.Habit{
			ID:   uuid.NewString(),
			Name: strings.Join(args[1:], " "),
		})
		st.Set("h2", habits)
		fmt.Println("Habit created")
	case len(args) >= 1 && args[0] == "list":
		for _, h := range habits {
			fmt.Printf("%s  %s\n", h.ID, h.Name)
		}
	default:
		fmt.Println("Usage: habit add <name> | habit list")
	}
}

func eventCmd(st *store.Store, args []string) {
	var events []models.CalEvent
	st.Get("ev2", &events)

	switch {
	case len(args) >= 3 && args[0] == "add":
		events = append(events, models.CalEvent{
			ID:    uuid.NewString(),
			Date:  args[1],
			Title: strings.Join(args[2:], " "),
		})
		st.Set("ev2", events)
		fmt.Println("Event added")
	case len(args) >= 1 && args[0] == "list":
		for _, ev := range events {
			fmt.Printf("%s  %s  %s\n", ev.ID, ev.Date, ev.Title)
		}
	default:
		fmt.Println("Usage: event add <YYYY-MM-DD> <title> | event list")
	}
}

func expenseCmd(st *store.Store, args []string) {
	var expenses []models.Expense
	st.Get("ex2", &expenses)

	switch {
	case len(args) >= 3 && args[0] == "add":
		amount, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			fmt.Println("Amount must be a number")
			return
		}
		expenses = append(expenses, models.Expense{
			ID:     uuid.NewString(),
			Amount: amount,
			Desc:   strings.Join(args[2:], " "),
			Date:   time.Now().Format("2006-01-02"),
		})
		st.Set("ex2", expenses)
		fmt.Println("Expense added")
	case len(args) >= 1 && args[0] == "list":
		for _, ex := range expenses {
			fmt.Printf("%s  %.2f  %s  %s\n", ex.ID, ex.Amount, ex.Date, ex.Desc)
		}
	default:
		fmt.Println("Usage: expense add <amount> <desc> | expense list")
	}
}

func gameCmd(st *store.Store, args []string) {
	var games []models.Game
	st.Get("gm2", &games)

	switch {
	case len(args) >= 2 && args[0] == "add":
		games = append(games, models.Game{
			ID:     uuid.NewString(),
			Title:  strings.Join(args[1:], " "),
			Status: string(models.GameBacklog),
		})
		st.Set("gm2", games)
		fmt.Println("Game added to backlog")
	case len(args) >= 1 && args[0] == "list":
		for _, g := range games {
			fmt.Printf("%s  [%s]  %s\n", g.ID, g.Status, g.Title)
		}
	default:
		fmt.Println("Usage: game add <title> | game list")
	}
}

func main() {
	baseURL := flag.String("s", "http://localhost:8080", "document store server URL")
	dataDir := flag.String("data", "focuskeeper-data", "local data directory")
	flag.Parse()

	fmt.Printf("Build version: %s\n", orNA(version))
	fmt.Printf("Build date: %s\n", orNA(buildDate))

	log := logger.New()
	if err := log.Init("Warn"); err != nil {
		fmt.Println("failed to init logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Log.Sync() }()

	table, err := store.NewFileTable(*dataDir)
	if err != nil {
		log.Log.Fatal("cannot open local data dir", zap.Error(err))
	}
	st := store.New(table, log.Log)
	client := remote.New(*baseURL, &http.Client{}, log.Log)
	session := sync.NewSession(client, st, func(fields []string) {
		if len(fields) > 0 {
			fmt.Println("\nCloud update received:", strings.Join(fields, ", "))
			fmt.Print("focuskeeper> ")
		}
	}, log.Log, sync.Config{})

	repl(context.Background(), st, client, session)

	session.HandleSignOut()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
