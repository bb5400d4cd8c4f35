package main

import (
	"math"
	"math/rand"
	"strconv"
	"strings"

	"github.com/getsentry/callprof"
)

// world is a small particle simulation used as the profiled program. Every
// method is traced.
type (
	vec struct {
		X, Y float64
	}

	entity struct {
		Pos, Vel vec
		Radius   float64
	}

	cell struct {
		X, Y int
	}

	world struct {
		session  *callprof.Session
		rng      *rand.Rand
		entities []entity
		grid     map[cell][]int
		frame    strings.Builder
		checksum uint64
	}
)

const (
	worldSize = 1000.0
	cellSize  = 25.0
	dt        = 1.0 / 60
)

func newWorld(s *callprof.Session, entities int, seed int64) *world {
	w := &world{
		session:  s,
		rng:      rand.New(rand.NewSource(seed)),
		entities: make([]entity, entities),
	}
	for i := range w.entities {
		w.entities[i] = entity{
			Pos:    vec{w.rng.Float64() * worldSize, w.rng.Float64() * worldSize},
			Vel:    vec{w.rng.NormFloat64() * 50, w.rng.NormFloat64() * 50},
			Radius: 2 + w.rng.Float64()*6,
		}
	}
	return w
}

func (w *world) tick() {
	defer w.session.Enter()()
	w.integrate()
	w.collide()
	w.render()
}

func (w *world) integrate() {
	defer w.session.Enter()()
	for i := range w.entities {
		w.move(&w.entities[i])
	}
}

func (w *world) move(e *entity) {
	defer w.session.Enter()()
	e.Pos.X += e.Vel.X * dt
	e.Pos.Y += e.Vel.Y * dt
	if e.Pos.X < 0 || e.Pos.X > worldSize {
		e.Vel.X = -e.Vel.X
	}
	if e.Pos.Y < 0 || e.Pos.Y > worldSize {
		e.Vel.Y = -e.Vel.Y
	}
}

func (w *world) collide() {
	defer w.session.Enter()()
	w.buildGrid()
	for c, members := range w.grid {
		w.resolveCell(c, members)
	}
}

func (w *world) buildGrid() {
	defer w.session.Enter()()
	w.grid = make(map[cell][]int, len(w.entities))
	for i, e := range w.entities {
		c := cell{int(e.Pos.X / cellSize), int(e.Pos.Y / cellSize)}
		w.grid[c] = append(w.grid[c], i)
	}
}

func (w *world) resolveCell(_ cell, members []int) {
	defer w.session.Enter()()
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			a, b := &w.entities[members[i]], &w.entities[members[j]]
			if w.overlaps(a, b) {
				a.Vel, b.Vel = b.Vel, a.Vel
			}
		}
	}
}

func (w *world) overlaps(a, b *entity) bool {
	defer w.session.Enter()()
	dx, dy := a.Pos.X-b.Pos.X, a.Pos.Y-b.Pos.Y
	return math.Hypot(dx, dy) < a.Radius+b.Radius
}

func (w *world) render() {
	defer w.session.Enter()()
	w.frame.Reset()
	for _, e := range w.entities {
		w.frame.WriteString(strconv.FormatFloat(e.Pos.X, 'f', 1, 64))
		w.frame.WriteByte(',')
		w.frame.WriteString(strconv.FormatFloat(e.Pos.Y, 'f', 1, 64))
		w.frame.WriteByte(';')
	}
	w.checksum += w.hash(w.frame.String(), 4)
}

// hash folds s recursively to give the profile some recursion.
func (w *world) hash(s string, depth int) uint64 {
	defer w.session.Enter()()
	if depth == 0 || len(s) < 2 {
		var h uint64 = 14695981039346656037
		for i := 0; i < len(s); i++ {
			h ^= uint64(s[i])
			h *= 1099511628211
		}
		return h
	}
	mid := len(s) / 2
	return w.hash(s[:mid], depth-1) ^ w.hash(s[mid:], depth-1)
}
