package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"

	"taskchat/internal/authclient"
	"taskchat/internal/chat"
	"taskchat/internal/config"
	"taskchat/internal/connection"
	"taskchat/internal/domain"
	"taskchat/internal/taskclient"
	"taskchat/pkg/logger"
)

// app holds everything that exists only while a user is logged in. It is
// rebuilt on login and torn down on logout, so no session state leaks
// across credentials. mu guards the session fields: the command loop and
// the connection manager's auth-error callback run on different
// goroutines.
type app struct {
	cfg  *config.Config
	log  *logger.Logger
	auth *authclient.Client

	mu    sync.Mutex
	creds authclient.Credentials
	tasks *taskclient.Client
	conn  *connection.Manager
	sess  *chat.Session
	peers map[string]domain.User // email -> user
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	cfg := config.LoadConfig()
	zl := logger.New(cfg.AppMode)
	defer zl.Sync()

	a := &app{cfg: cfg, log: zl, auth: authclient.New(cfg.APIBaseURL, zl), peers: make(map[string]domain.User)}

	fmt.Println("taskchat — /login <email> <password>, /register <name> <email> <password>, /help")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			break
		}
		a.mu.Lock()
		a.handle(line)
		a.mu.Unlock()
	}
	a.mu.Lock()
	a.logout()
	a.mu.Unlock()
}

func (a *app) handle(line string) {
	ctx := context.Background()
	fields := strings.Fields(line)

	switch fields[0] {
	case "/help":
		fmt.Println(`commands:
  /register <name> <email> <password>   create an account and sign in
  /login <email> <password>             sign in
  /logout                               sign out and drop the channel
  /users                                list peers with presence
  /chat <email>                         open a conversation
  /read                                 mark the open conversation read
  /tasks [status] [category] [search]   list tasks
  /task add <title>                     create a task
  /task done <id>                       toggle a task
  /task rm <id>                         delete a task
  /stats                                task statistics
  anything else                         send as a message to the open peer`)

	case "/register":
		if len(fields) < 4 {
			fmt.Println("usage: /register <name> <email> <password>")
			return
		}
		creds, err := a.auth.Register(ctx, fields[1], fields[2], fields[3])
		if err != nil {
			fmt.Println("register failed:", err)
			return
		}
		a.startSession(creds)

	case "/login":
		if len(fields) < 3 {
			fmt.Println("usage: /login <email> <password>")
			return
		}
		creds, err := a.auth.Login(ctx, fields[1], fields[2])
		if err != nil {
			fmt.Println("login failed:", err)
			return
		}
		a.startSession(creds)

	case "/logout":
		a.logout()
		fmt.Println("signed out")

	case "/users":
		if !a.requireSession() {
			return
		}
		users, err := a.auth.ListUsers(ctx, a.creds.Token)
		if err != nil {
			fmt.Println("list users failed:", err)
			return
		}
		st := a.sess.Snapshot()
		for _, u := range users {
			a.peers[u.Email] = u
			marker := " "
			for _, id := range st.OnlineUserIDs {
				if id == u.ID {
					marker = "*"
				}
			}
			fmt.Printf("%s %s <%s> unread=%d\n", marker, u.DisplayName, u.Email, st.UnreadCounts[u.ID])
		}

	case "/chat":
		if !a.requireSession() {
			return
		}
		if len(fields) < 2 {
			fmt.Println("usage: /chat <email>")
			return
		}
		peer, ok := a.peers[fields[1]]
		if !ok {
			fmt.Println("unknown user, run /users first")
			return
		}
		a.sess.SelectConversation(&peer)
		for _, msg := range a.sess.Conversation() {
			printMessage(msg, a.creds.User.ID)
		}

	case "/read":
		if !a.requireSession() {
			return
		}
		for _, msg := range a.sess.Conversation() {
			if msg.ReceiverID == a.creds.User.ID && !msg.IsRead && msg.ID != "" {
				a.sess.MarkRead(msg.ID)
			}
		}

	case "/tasks":
		if !a.requireSession() {
			return
		}
		filter := taskclient.Filter{}
		if len(fields) > 1 {
			filter.Status = domain.TaskStatus(fields[1])
		}
		if len(fields) > 2 {
			filter.Category = domain.TaskCategory(fields[2])
		}
		if len(fields) > 3 {
			filter.Search = fields[3]
		}
		tasks, err := a.tasks.List(ctx, filter)
		if err != nil {
			fmt.Println("list tasks failed:", err)
			return
		}
		for _, t := range tasks {
			fmt.Printf("[%s] %s  %s (%s/%s)\n", t.Status, t.ID, t.Title, t.Category, t.Priority)
		}

	case "/task":
		if !a.requireSession() || len(fields) < 3 {
			fmt.Println("usage: /task add <title> | /task done <id> | /task rm <id>")
			return
		}
		switch fields[1] {
		case "add":
			task, err := a.tasks.Create(ctx, taskclient.Draft{Title: strings.Join(fields[2:], " ")})
			if err != nil {
				fmt.Println("create task failed:", err)
				return
			}
			fmt.Println("created", task.ID)
		case "done":
			task, err := a.tasks.Get(ctx, fields[2])
			if err == nil {
				task, err = a.tasks.Toggle(ctx, task)
			}
			if err != nil {
				fmt.Println("toggle task failed:", err)
				return
			}
			fmt.Println(task.ID, "is now", task.Status)
		case "rm":
			if err := a.tasks.Delete(ctx, fields[2]); err != nil {
				fmt.Println("delete task failed:", err)
				return
			}
			fmt.Println("deleted", fields[2])
		}

	case "/stats":
		if !a.requireSession() {
			return
		}
		stats, err := a.tasks.Stats(ctx)
		if err != nil {
			fmt.Println("stats failed:", err)
			return
		}
		fmt.Printf("%d tasks, %d completed, %d pending (%.1f%%)\n",
			stats.TotalTasks, stats.CompletedTasks, stats.PendingTasks, stats.CompletionRate)

	default:
		if !a.requireSession() {
			return
		}
		st := a.sess.Snapshot()
		if st.CurrentPeerID == "" {
			fmt.Println("no conversation open, use /chat <email>")
			return
		}
		a.sess.Keystroke()
		a.sess.SendMessage(st.CurrentPeerID, line, domain.KindText, "")
	}
}

// startSession replaces any existing session with one for the new
// credential: connect the channel, then build the session over it.
func (a *app) startSession(creds authclient.Credentials) {
	a.logout()

	a.creds = creds
	a.tasks = taskclient.New(a.cfg.APIBaseURL, creds.Token, a.log)
	a.conn = connection.NewManager(connection.Config{
		URL:    a.cfg.SocketURL,
		Logger: a.log,
		OnStatus: func(st connection.Status) {
			fmt.Println("[channel]", st)
		},
		OnAuthError: a.forceLogout,
	})
	if err := a.conn.Connect(creds.Token); err != nil {
		fmt.Println("connect failed:", err)
		a.conn = nil
		return
	}
	a.sess = chat.NewSession(creds.User, a.conn, a.cfg.TypingTimeout, a.log)
	fmt.Printf("signed in as %s <%s>\n", creds.User.DisplayName, creds.User.Email)
}

// forceLogout tears the session down when the server rejects the
// credential. Runs on the connection manager's goroutine, so it takes
// the lock the command loop holds while handling input.
func (a *app) forceLogout(err error) {
	fmt.Println("[channel] credential rejected, signing out:", err)
	a.mu.Lock()
	a.logout()
	a.mu.Unlock()
}

// logout tears the session down before the credential goes away, so the
// channel never outlives the authentication state. Callers hold a.mu.
func (a *app) logout() {
	if a.sess != nil {
		a.sess.Close()
		a.sess = nil
	}
	if a.conn != nil {
		a.conn.Disconnect()
		a.conn = nil
	}
	a.tasks = nil
	a.creds = authclient.Credentials{}
}

func (a *app) requireSession() bool {
	if a.sess == nil {
		fmt.Println("not signed in")
		return false
	}
	return true
}

func printMessage(msg domain.Message, selfID string) {
	who := "them"
	if msg.SenderID == selfID {
		who = "me"
	}
	flags := ""
	if msg.Pending {
		flags = " (sending)"
	} else if msg.IsRead {
		flags = " (read)"
	}
	fmt.Printf("%s %s: %s%s\n", msg.Timestamp.Format("15:04"), who, msg.Text, flags)
}
