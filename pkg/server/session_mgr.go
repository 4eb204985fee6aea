package server

import (
	"sort"

	"github.com/lithammer/shortuuid/v4"
	"github.com/panjf2000/gnet/v2"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/samber/lo"
)

type SessionManager struct {
	sessions *xsync.MapOf[string, *Session]
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: xsync.NewMapOf[string, *Session](),
	}
}

func (sm *SessionManager) OpenSession(c gnet.Conn) *Session {
	session := NewSession(shortuuid.New(), c)
	sm.sessions.Store(session.Id, session)
	return session
}

func (sm *SessionManager) LoadSession(id string) *Session {
	if session, ok := sm.sessions.Load(id); ok {
		return session
	}
	return nil
}

func (sm *SessionManager) CloseSession(id string) {
	sm.sessions.Delete(id)
}

func (sm *SessionManager) Count() int {
	return sm.sessions.Size()
}

// List returns a snapshot of all open sessions, oldest first.
func (sm *SessionManager) List() []SessionInfo {
	all := make([]*Session, 0, sm.sessions.Size())
	sm.sessions.Range(func(_ string, session *Session) bool {
		all = append(all, session)
		return true
	})
	infos := lo.Map(all, func(s *Session, _ int) SessionInfo {
		return s.Info()
	})
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].OpenedAt.Before(infos[j].OpenedAt)
	})
	return infos
}

func (sm *SessionManager) Clear() {
	sm.sessions.Clear()
}
