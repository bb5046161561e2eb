package demo

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kolah/veritas"
	"github.com/kolah/veritas/middleware"
	"github.com/kolah/veritas/schema"
)

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("user %s not found", e.ID)
}

func (e *NotFoundError) HTTPStatus() int {
	return http.StatusNotFound
}

// Store keeps users in memory.
type Store struct {
	mu    sync.RWMutex
	users map[string]User
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{users: make(map[string]User), now: time.Now}
}

func (s *Store) Create(name, email string) User {
	u := User{ID: uuid.NewString(), Name: name, Email: email, CreatedAt: s.now().UTC()}
	s.mu.Lock()
	s.users[u.ID] = u
	s.mu.Unlock()
	return u
}

func (s *Store) Get(id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, &NotFoundError{ID: id}
	}
	return u, nil
}

// List returns users whose name or email contains search, oldest first.
func (s *Store) List(search string) []User {
	s.mu.RLock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		if search == "" || strings.Contains(u.Name, search) || strings.Contains(u.Email, search) {
			out = append(out, u)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b User) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

var userSchema = schema.Object(schema.Props{
	"id":        schema.UUID(),
	"name":      schema.String(),
	"email":     schema.Email(),
	"createdAt": schema.DateTime(),
})

func (a *App) usersController() (*veritas.Controller, error) {
	c := veritas.NewController(veritas.ControllerOptions{
		Prefix: "/users",
		Tags:   []string{"users"},
	})

	err := c.AddOperation(veritas.Definition{
		Name:        "Create User",
		Summary:     "Create a user",
		Method:      "POST",
		Path:        "/",
		Req:         schema.Object(schema.Props{"name": schema.String(), "email": schema.Email()}),
		Res:         schema.Describe(userSchema, "The created user"),
		Description: "Creates a user and returns it with its generated id.",
	}, a.createUser)
	if err != nil {
		return nil, err
	}

	err = c.AddOperation(veritas.Definition{
		Name:       "Get User By Id",
		Summary:    "Fetch one user",
		Method:     "GET",
		Path:       "/:userId",
		Params:     schema.Object(schema.Props{"userId": schema.UUID()}),
		Res:        userSchema,
		Auth:       true,
		Middleware: []middleware.Handler{middleware.Authenticate(middleware.BearerHandler(a.authenticate))},
	}, a.getUser)
	if err != nil {
		return nil, err
	}

	err = c.AddOperation(veritas.Definition{
		Name:    "List Users",
		Summary: "List users",
		Method:  "GET",
		Path:    "/",
		Query:   schema.PartialObject(schema.Props{"search": schema.Describe(schema.String(), "Substring of the name or email")}),
		Res:     schema.Array(userSchema),
	}, a.listUsers)
	if err != nil {
		return nil, err
	}

	return c, nil
}

func (a *App) createUser(c *middleware.Context, next middleware.Next) error {
	var in struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := c.Decode(&in); err != nil {
		return err
	}
	c.JSON(http.StatusCreated, a.Store.Create(in.Name, in.Email))
	return nil
}

func (a *App) getUser(c *middleware.Context, next middleware.Next) error {
	u, err := a.Store.Get(c.Params["userId"])
	if err != nil {
		return err
	}
	c.Response = u
	return nil
}

func (a *App) listUsers(c *middleware.Context, next middleware.Next) error {
	c.Response = a.Store.List(c.Query.Get("search"))
	return nil
}
