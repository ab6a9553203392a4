package client_test

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hackwave/hackwave/citest/testutil"
	"github.com/hackwave/hackwave/internal/config"
	"github.com/hackwave/hackwave/internal/session"
	"github.com/hackwave/hackwave/internal/stream"
	"github.com/hackwave/hackwave/pkg/types"
)

var _ = Describe("Session and push channel", func() {
	var platform *testutil.Platform
	var controller *session.Controller

	ada := &types.User{ID: "u-ada", Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace", EmailVerified: true}

	BeforeEach(func() {
		platform = testutil.NewPlatform()
		platform.AddUser("ada@example.com", "correct-horse", ada)

		cfg := &config.Config{
			BaseURL:               platform.URL(),
			RequestTimeoutSeconds: 5,
			Stream:                config.StreamConfig{ReconnectInitialMS: 10, ReconnectMaxMS: 50},
		}
		var err error
		controller, err = session.NewController(cfg)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		controller.Close()
		platform.Close()
	})

	login := func() {
		res, err := controller.Login(context.Background(), "ada@example.com", "correct-horse")
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Outcome).To(Equal(session.OutcomeOK))
		Eventually(controller.StreamState).Should(Equal(stream.StateConnected))
	}

	It("authenticates and brings the push channel up", func() {
		login()

		Expect(controller.Status()).To(Equal(session.StatusAuthenticated))
		Expect(controller.User().FullName()).To(Equal("Ada Lovelace"))
		Eventually(platform.StreamConnections).Should(Equal(1))
	})

	It("routes pass-through events to subscribers in order", func() {
		login()

		var mu sync.Mutex
		var got []string
		controller.Router().Subscribe("notification.arrived", func(ev types.StreamEvent) {
			mu.Lock()
			got = append(got, string(ev.Data))
			mu.Unlock()
		})

		platform.PushEvent("notification.arrived", `{"id":"n1"}`)
		platform.PushEvent("notification.arrived", `{"id":"n2"}`)

		Eventually(func() []string {
			mu.Lock()
			defer mu.Unlock()
			return append([]string(nil), got...)
		}).Should(Equal([]string{`{"id":"n1"}`, `{"id":"n2"}`}))
	})

	It("adopts a pushed token rotation without a refresh round trip", func() {
		login()
		before := platform.RefreshCount()

		platform.PushEvent(types.EventTokenRefresh, `{"token":"rotated-token"}`)

		Eventually(func() string {
			tok, _ := controller.Credentials().Get()
			return tok
		}).Should(Equal("rotated-token"))
		Expect(platform.RefreshCount()).To(Equal(before))
	})

	It("restores a session from the cookie with a single shared refresh", func() {
		login()
		controller.Credentials().Clear() // simulate a reload losing the in-memory token
		before := platform.RefreshCount()

		var wg sync.WaitGroup
		tokens := make([]string, 4)
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				tokens[i], _ = controller.Token(context.Background())
			}(i)
		}
		wg.Wait()

		Expect(platform.RefreshCount()).To(Equal(before + 1))
		for _, tok := range tokens {
			Expect(tok).To(Equal(tokens[0]))
			Expect(tok).NotTo(BeEmpty())
		}
	})

	It("suspends and closes the stream on a revocation push", func() {
		login()

		platform.PushEvent(types.EventSessionRevoked, `{"reason":"banned","suspensionReason":"Policy violation: spam"}`)

		Eventually(controller.Status).Should(Equal(session.StatusSuspended))
		Expect(controller.SuspensionReason()).To(Equal("Policy violation: spam"))
		Eventually(controller.StreamState).Should(Equal(stream.StateDisconnected))
		Eventually(platform.StreamConnections).Should(BeZero())
		Consistently(platform.StreamConnections).Should(BeZero())
	})

	It("logs out even when a refresh is in flight", func() {
		login()
		controller.Credentials().Clear()

		done := make(chan struct{})
		go func() {
			defer close(done)
			controller.Token(context.Background())
		}()
		controller.Logout(context.Background())
		<-done

		Expect(controller.Status()).To(Equal(session.StatusAnonymous))
		_, ok := controller.Credentials().Get()
		Expect(ok).To(BeFalse())
		Expect(controller.StreamState()).To(Equal(stream.StateDisconnected))
	})

	It("reports suspension at login as a state, not an error", func() {
		platform.SuspendUser("ada@example.com", "Policy violation: spam")

		res, err := controller.Login(context.Background(), "ada@example.com", "correct-horse")
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Outcome).To(Equal(session.OutcomeSuspended))
		Expect(controller.Status()).To(Equal(session.StatusSuspended))
		Expect(controller.SuspensionReason()).To(Equal("Policy violation: spam"))
	})
})
