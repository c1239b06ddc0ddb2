// Package memory is an in-process store used for local development and tests.
// One mutex guards every table so conditional updates behave like a serializable transaction.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"carbooking-backend/internal/domain"
	"carbooking-backend/internal/repository"
)

type Store struct {
	mu            sync.Mutex
	cars          map[int32]*domain.Car
	users         map[int32]*domain.User
	bookings      map[int32]*domain.Booking
	notifications []*domain.Notification
	nextBookingID int32
	nextNoteID    int32
	now           func() time.Time
}

func NewStore() *Store {
	return &Store{
		cars:     make(map[int32]*domain.Car),
		users:    make(map[int32]*domain.User),
		bookings: make(map[int32]*domain.Booking),
		now:      time.Now,
	}
}

func (s *Store) PutCar(car *domain.Car) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *car
	s.cars[car.ID] = &c
}

func (s *Store) PutUser(u *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *u
	s.users[u.ID] = &c
}

// Cars returns the car repository view of the store.
func (s *Store) Cars() repository.CarRepository { return carRepo{s} }

// Bookings returns the booking repository view of the store.
func (s *Store) Bookings() repository.BookingRepository { return bookingRepo{s} }

// Notifications returns the notification repository view of the store.
func (s *Store) Notifications() repository.NotificationRepository { return noteRepo{s} }

// Users returns the user repository view of the store.
func (s *Store) Users() repository.UserRepository { return userRepo{s} }

type carRepo struct{ s *Store }

func (r carRepo) GetByID(ctx context.Context, id int32) (*domain.Car, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	car, ok := r.s.cars[id]
	if !ok {
		return nil, domain.ErrCarNotFound
	}
	c := *car
	return &c, nil
}

func (r carRepo) SetAvailable(ctx context.Context, id int32, available bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.setAvailableLocked(id, available)
}

func (s *Store) setAvailableLocked(id int32, available bool) error {
	car, ok := s.cars[id]
	if !ok {
		return domain.ErrCarNotFound
	}
	car.Available = available
	car.UpdatedAt = s.now()
	return nil
}

type userRepo struct{ s *Store }

func (r userRepo) GetByID(ctx context.Context, id int32) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *u
	return &c, nil
}

type bookingRepo struct{ s *Store }

func (r bookingRepo) Create(ctx context.Context, b *domain.Booking, guard *repository.ConflictGuard) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if guard != nil && len(r.s.conflictsLocked(b.CarID, b.Window(), nil, guard.Statuses)) > 0 {
		return domain.ErrConcurrentBookingConflict
	}

	r.s.nextBookingID++
	b.ID = r.s.nextBookingID
	now := r.s.now()
	b.CreatedAt = now
	b.UpdatedAt = now
	r.s.bookings[b.ID] = b.Clone()
	return nil
}

func (r bookingRepo) GetByID(ctx context.Context, id int32) (*domain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	return b.Clone(), nil
}

func (r bookingRepo) GetByOrderID(ctx context.Context, orderID string) (*domain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.bookings {
		if orderID != "" && b.Payment.OrderID == orderID {
			return b.Clone(), nil
		}
	}
	return nil, domain.ErrBookingNotFound
}

func (r bookingRepo) FindConflicting(ctx context.Context, carID int32, start, end time.Time, excludeID *int32, statuses []domain.BookingStatus) ([]domain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.conflictsLocked(carID, domain.Window{Start: start, End: end}, excludeID, statuses), nil
}

func (s *Store) conflictsLocked(carID int32, w domain.Window, excludeID *int32, statuses []domain.BookingStatus) []domain.Booking {
	var out []domain.Booking
	for _, b := range s.bookings {
		if b.CarID != carID || !repository.ContainsStatus(statuses, b.Status) {
			continue
		}
		if excludeID != nil && b.ID == *excludeID {
			continue
		}
		if b.Window().Overlaps(w) {
			out = append(out, *b.Clone())
		}
	}
	sortBookings(out)
	return out
}

func (r bookingRepo) ConditionalUpdate(ctx context.Context, id int32, spec repository.TransitionSpec) (*domain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.bookings[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	if !repository.ContainsStatus(spec.Expected, stored.Status) {
		return stored.Clone(), repository.ErrPreconditionFailed
	}
	if spec.Guard != nil {
		if len(r.s.conflictsLocked(stored.CarID, stored.Window(), &stored.ID, spec.Guard.Statuses)) > 0 {
			return nil, domain.ErrConcurrentBookingConflict
		}
	}
	if spec.SetCarAvailable != nil {
		if _, ok := r.s.cars[stored.CarID]; !ok {
			return nil, domain.ErrCarNotFound
		}
	}

	updated := stored.Clone()
	if spec.Mutate != nil {
		if err := spec.Mutate(updated); err != nil {
			return nil, err
		}
	}
	updated.UpdatedAt = r.s.now()

	if spec.SetCarAvailable != nil {
		_ = r.s.setAvailableLocked(stored.CarID, *spec.SetCarAvailable)
	}
	r.s.bookings[id] = updated
	return updated.Clone(), nil
}

func (r bookingRepo) ListByCustomer(ctx context.Context, customerID int32, page, pageSize int32) ([]domain.Booking, int32, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []domain.Booking
	for _, b := range r.s.bookings {
		if b.CustomerID == customerID {
			all = append(all, *b.Clone())
		}
	}
	sortBookings(all)
	return paginate(all, page, pageSize), int32(len(all)), nil
}

func (r bookingRepo) ListByCar(ctx context.Context, carID int32, statuses []domain.BookingStatus) ([]domain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Booking
	for _, b := range r.s.bookings {
		if b.CarID != carID {
			continue
		}
		if len(statuses) > 0 && !repository.ContainsStatus(statuses, b.Status) {
			continue
		}
		out = append(out, *b.Clone())
	}
	sortBookings(out)
	return out, nil
}

func (r bookingRepo) ListByStatus(ctx context.Context, statuses []domain.BookingStatus, page, pageSize int32) ([]domain.Booking, int32, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []domain.Booking
	for _, b := range r.s.bookings {
		if repository.ContainsStatus(statuses, b.Status) {
			all = append(all, *b.Clone())
		}
	}
	sortBookings(all)
	return paginate(all, page, pageSize), int32(len(all)), nil
}

func (r bookingRepo) ListOverdue(ctx context.Context, now time.Time) ([]domain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Booking
	for _, b := range r.s.bookings {
		if b.Status == domain.BookingStatusActive && b.EndTime.Before(now) {
			out = append(out, *b.Clone())
		}
	}
	sortBookings(out)
	return out, nil
}

type noteRepo struct{ s *Store }

func (r noteRepo) Create(ctx context.Context, n *domain.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextNoteID++
	n.ID = r.s.nextNoteID
	n.CreatedOn = r.s.now()
	c := *n
	r.s.notifications = append(r.s.notifications, &c)
	return nil
}

func (r noteRepo) List(ctx context.Context, userID int32, limit, offset int32) ([]domain.Notification, int32, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []domain.Notification
	for i := len(r.s.notifications) - 1; i >= 0; i-- {
		if n := r.s.notifications[i]; n.UserID == userID {
			all = append(all, *n)
		}
	}
	count := int32(len(all))
	if offset >= count {
		return nil, count, nil
	}
	end := offset + limit
	if limit <= 0 || end > count {
		end = count
	}
	return all[offset:end], count, nil
}

func (r noteRepo) MarkAsRead(ctx context.Context, id, userID int32) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, n := range r.s.notifications {
		if n.ID == id && n.UserID == userID {
			n.IsRead = true
			return nil
		}
	}
	return repository.ErrNotificationNotFound
}

func sortBookings(bs []domain.Booking) {
	sort.Slice(bs, func(i, j int) bool { return bs[i].ID < bs[j].ID })
}

func paginate(bs []domain.Booking, page, pageSize int32) []domain.Booking {
	if pageSize <= 0 {
		return bs
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	if int(start) >= len(bs) {
		return nil
	}
	end := start + pageSize
	if int(end) > len(bs) {
		end = int32(len(bs))
	}
	return bs[start:end]
}
