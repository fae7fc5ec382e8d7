// Copyright 2025-2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

Package rag 提供向量检索的核心构件：文档分块、向量存储（含 HNSW 近似索引
加速）和语义缓存。

# 核心接口/类型

  - VectorStore — 向量数据库统一接口（AddDocuments / Search / DeleteDocuments / UpdateDocument / Count）
  - Clearable / DocumentLister — VectorStore 的可选能力接口
  - Tokenizer — 分块专用分词器接口，LLMTokenizerAdapter 桥接 llm/tokenizer

# 主要能力

  - 文档分块：固定大小、递归、语义、文档感知四种策略（DocumentChunker）
  - 向量存储后端：InMemory（大规模下自动切换 HNSW 索引）、Qdrant
  - 语义缓存：基于向量相似度的查询结果缓存（SemanticCache）
*/
package rag
