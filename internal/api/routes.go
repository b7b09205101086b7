package api

func (s *Server) registerRoutes() {
	s.router.HandleFunc("GET /api/jokes/random", s.handleRandom)
	s.router.HandleFunc("GET /api/jokes/all", s.handleAll)
	s.router.HandleFunc("POST /api/jokes/ai", s.handleAI)
	s.router.HandleFunc("GET /api/health", s.handleHealth)

	// Anything else under /api/ is a JSON 404; this pattern is more specific
	// than "/", so unknown API paths never reach the document route.
	s.router.HandleFunc("/api/", s.handleAPINotFound)

	s.router.HandleFunc("/", s.handleIndex)
}
