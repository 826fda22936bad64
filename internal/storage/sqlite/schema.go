package sqlite

// baseSchema is applied on every Open before the migration engine runs. It
// contains only what has been stable since the first release; everything
// added later is a migration in registeredMigrations (migrations.go), tracked
// by id in schema_migrations_applied so branch-divergent histories never
// collide on an ordinal (spec.md 4.2).
const baseSchema = `
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS documents (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    content TEXT NOT NULL DEFAULT '',
    project TEXT NOT NULL DEFAULT '',
    content_hash TEXT NOT NULL DEFAULT '',
    doc_type TEXT NOT NULL DEFAULT 'user',
    current_version_number INTEGER NOT NULL DEFAULT 0,
    access_count INTEGER NOT NULL DEFAULT 0,
    is_deleted INTEGER NOT NULL DEFAULT 0,
    deleted_at DATETIME,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    accessed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_documents_project ON documents(project);
CREATE INDEX IF NOT EXISTS idx_documents_deleted ON documents(is_deleted);
CREATE INDEX IF NOT EXISTS idx_documents_doc_type ON documents(doc_type);
CREATE INDEX IF NOT EXISTS idx_documents_updated_at ON documents(updated_at);

CREATE TABLE IF NOT EXISTS tags (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS document_tags (
    doc_id INTEGER NOT NULL,
    tag_id INTEGER NOT NULL,
    PRIMARY KEY (doc_id, tag_id),
    FOREIGN KEY (doc_id) REFERENCES documents(id) ON DELETE CASCADE,
    FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_document_tags_tag ON document_tags(tag_id);

CREATE TABLE IF NOT EXISTS categories (
    key TEXT PRIMARY KEY,
    display_name TEXT NOT NULL DEFAULT '',
    next_sequence INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS tasks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'open',
    priority INTEGER NOT NULL DEFAULT 2,
    category_key TEXT,
    sequence_number INTEGER,
    epic_key TEXT,
    is_epic INTEGER NOT NULL DEFAULT 0,
    parent_task_id INTEGER,
    prompt TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    completed_at DATETIME,
    UNIQUE (category_key, sequence_number),
    FOREIGN KEY (parent_task_id) REFERENCES tasks(id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_category ON tasks(category_key);
CREATE INDEX IF NOT EXISTS idx_tasks_epic ON tasks(epic_key);

CREATE TABLE IF NOT EXISTS task_dependencies (
    blocker_task_id INTEGER NOT NULL,
    blocked_task_id INTEGER NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (blocker_task_id, blocked_task_id),
    FOREIGN KEY (blocker_task_id) REFERENCES tasks(id) ON DELETE CASCADE,
    FOREIGN KEY (blocked_task_id) REFERENCES tasks(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_task_deps_blocked ON task_dependencies(blocked_task_id);

CREATE TABLE IF NOT EXISTS document_links (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source_doc_id INTEGER NOT NULL,
    target_doc_id INTEGER NOT NULL,
    kind TEXT NOT NULL,
    similarity_score REAL NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (source_doc_id, target_doc_id, kind),
    FOREIGN KEY (source_doc_id) REFERENCES documents(id) ON DELETE CASCADE,
    FOREIGN KEY (target_doc_id) REFERENCES documents(id) ON DELETE CASCADE,
    CHECK (source_doc_id != target_doc_id)
);

CREATE INDEX IF NOT EXISTS idx_document_links_source ON document_links(source_doc_id);
CREATE INDEX IF NOT EXISTS idx_document_links_target ON document_links(target_doc_id);

CREATE TABLE IF NOT EXISTS executions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    doc_id INTEGER,
    doc_title TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'running',
    started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    completed_at DATETIME,
    log_file TEXT NOT NULL DEFAULT '',
    exit_code INTEGER,
    pid INTEGER,
    working_dir TEXT NOT NULL DEFAULT '',
    last_heartbeat DATETIME,
    agent_type TEXT NOT NULL DEFAULT '',
    pr_url TEXT NOT NULL DEFAULT '',
    task_id INTEGER,
    FOREIGN KEY (doc_id) REFERENCES documents(id) ON DELETE SET NULL,
    FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_executions_status ON executions(status);

CREATE TABLE IF NOT EXISTS document_versions (
    doc_id INTEGER NOT NULL,
    version_number INTEGER NOT NULL,
    content_hash TEXT NOT NULL,
    character_delta INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (doc_id, version_number),
    FOREIGN KEY (doc_id) REFERENCES documents(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS knowledge_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    event_type TEXT NOT NULL,
    doc_id INTEGER,
    session_id TEXT NOT NULL DEFAULT '',
    metadata TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (doc_id) REFERENCES documents(id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_knowledge_events_doc ON knowledge_events(doc_id);
CREATE INDEX IF NOT EXISTS idx_knowledge_events_type ON knowledge_events(event_type);

CREATE TABLE IF NOT EXISTS chunks (
    doc_id INTEGER NOT NULL,
    chunk_index INTEGER NOT NULL,
    text TEXT NOT NULL,
    embedding BLOB,
    token_count INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (doc_id, chunk_index),
    FOREIGN KEY (doc_id) REFERENCES documents(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS entities (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    doc_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    entity_type TEXT NOT NULL DEFAULT 'component',
    FOREIGN KEY (doc_id) REFERENCES documents(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(name);
CREATE INDEX IF NOT EXISTS idx_entities_doc ON entities(doc_id);

CREATE TABLE IF NOT EXISTS schema_flags (
    key TEXT PRIMARY KEY,
    applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS schema_migrations_applied (
    id TEXT PRIMARY KEY,
    applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- documents_fts shadows documents(title, content, project). It is only ever
-- the subject of a MATCH predicate -- never joined as a plain column, per
-- spec.md 4.1.
CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
    title, content, project,
    content='documents', content_rowid='id'
);

CREATE TRIGGER IF NOT EXISTS documents_ai AFTER INSERT ON documents BEGIN
    INSERT INTO documents_fts(rowid, title, content, project)
    VALUES (new.id, new.title, new.content, new.project);
END;

CREATE TRIGGER IF NOT EXISTS documents_ad AFTER DELETE ON documents BEGIN
    INSERT INTO documents_fts(documents_fts, rowid, title, content, project)
    VALUES ('delete', old.id, old.title, old.content, old.project);
END;

CREATE TRIGGER IF NOT EXISTS documents_au AFTER UPDATE ON documents BEGIN
    INSERT INTO documents_fts(documents_fts, rowid, title, content, project)
    VALUES ('delete', old.id, old.title, old.content, old.project);
    INSERT INTO documents_fts(rowid, title, content, project)
    VALUES (new.id, new.title, new.content, new.project);
END;
`
